package store

// Keys of the durable session fields.
const (
	KeyToken    = "token"
	KeyEmail    = "email"
	KeyPassword = "password"
)

// SessionKeys lists every key the session store owns.
var SessionKeys = []string{KeyToken, KeyEmail, KeyPassword}
