package models

import "time"

// User represents an account stored in folio-server. All ledger, snapshot and
// rebuild rows are scoped by the user's ID.
type User struct {
	ID           string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	BaseCurrency Currency  `json:"base_currency,omitempty"`
	Portfolios   []string  `json:"portfolios,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
