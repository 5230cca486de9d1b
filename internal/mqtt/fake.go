package mqtt

import "sync"

// FakePublisher records published payloads for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the payload.
func (f *FakePublisher) Publish(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Published returns a copy of the recorded payloads.
func (f *FakePublisher) Published() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.Payloads...)
}

// IsClosed reports whether Close was called.
func (f *FakePublisher) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
