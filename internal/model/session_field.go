package model

import "time"

// SessionField is one key/value row of the durable session store.
type SessionField struct {
	Key       string    `gorm:"column:name;primaryKey;size:64"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
