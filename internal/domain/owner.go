package domain

import "time"

// Owner represents an authenticated dashboard account.
type Owner struct {
	ID           string
	Handle       string
	PasswordHash []byte
	CreatedAt    time.Time
}
