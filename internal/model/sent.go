package model

import "time"

// SentMessage is one row of the outbound audit ledger.
type SentMessage struct {
	ID        string     `db:"ID"`
	ChatID    string     `db:"ChatID"`
	SentAt    time.Time  `db:"SentAt"`
	DeletedAt *time.Time `db:"DeletedAt"`
}
