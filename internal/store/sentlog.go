package store

import (
	"fmt"
	"path"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"uk.co.dudmesh.bitlink/internal/model"
)

// sentlog records every message the gateway sends and every revocation it
// performs. The hub keeps its own mapping for deletions; this ledger is
// the gateway-side audit trail.
type sentlog struct {
	db *sqlx.DB
}

func NewSentLog(dataDirectory string) (*sentlog, error) {
	dbName := path.Join(dataDirectory, "sentlog.db")

	db, err := sqlx.Connect("sqlite3", "file:"+dbName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	datastore := &sentlog{db}
	if err := datastore.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return datastore, nil
}

func (d *sentlog) Close() error {
	return d.db.Close()
}

func (d *sentlog) createTables() error {
	_, err := d.db.Exec(`create table if not exists sent_message(
		ID        text not null primary key,
		ChatID    text not null,
		SentAt    DATETIME not null,
		DeletedAt DATETIME null
	)`)
	if err != nil {
		return fmt.Errorf("creating sent_message table: %w", err)
	}
	return nil
}

func (d *sentlog) Record(id string, chatID string, sentAt time.Time) error {
	_, err := d.db.Exec(`insert or replace into sent_message (ID, ChatID, SentAt)
		values (?, ?, ?)`, id, chatID, sentAt)
	if err != nil {
		return fmt.Errorf("inserting sent message: %w", err)
	}
	return nil
}

func (d *sentlog) MarkDeleted(id string) error {
	_, err := d.db.Exec(`update sent_message set DeletedAt = ? where ID = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking message deleted: %w", err)
	}
	return nil
}

func (d *sentlog) Recent(limit int) ([]model.SentMessage, error) {
	messages := []model.SentMessage{}
	err := d.db.Select(&messages, `select * from sent_message order by SentAt desc limit ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching sent messages: %w", err)
	}
	return messages, nil
}
