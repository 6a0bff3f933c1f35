// Package conversation persists dialog history as a key-value mapping from
// conversation id to a serialized ordered list of messages.
package conversation

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/dbv111m/tb1/internal/llm"
)

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS dialogs (
    chat_id TEXT PRIMARY KEY,
    messages TEXT NOT NULL,
    updated_at DATETIME DEFAULT (datetime('now'))
);
`

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get returns the stored history, oldest first. A conversation that was
// never written returns nil without error.
func (s *Store) Get(chatID string) ([]llm.Message, error) {
	var raw string
	err := s.db.QueryRow(`SELECT messages FROM dialogs WHERE chat_id = ?`, chatID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []llm.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// Set replaces the stored history in one statement, atomic at the
// single-conversation granularity.
func (s *Store) Set(chatID string, messages []llm.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO dialogs (chat_id, messages, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(chat_id) DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at`,
		chatID, string(raw))
	return err
}

func (s *Store) Delete(chatID string) error {
	_, err := s.db.Exec(`DELETE FROM dialogs WHERE chat_id = ?`, chatID)
	return err
}
