package keypool

import "database/sql"

// SQLRegistry persists contributed keys in SQLite, one row per user.
type SQLRegistry struct {
	db *sql.DB
}

const registrySchema = `
CREATE TABLE IF NOT EXISTS user_keys (
    user_id TEXT PRIMARY KEY,
    api_key TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_keys_key ON user_keys(api_key);
`

func NewSQLRegistry(db *sql.DB) (*SQLRegistry, error) {
	if _, err := db.Exec(registrySchema); err != nil {
		return nil, err
	}
	return &SQLRegistry{db: db}, nil
}

// Put stores or replaces the key contributed by a user.
func (r *SQLRegistry) Put(userID, key string) error {
	_, err := r.db.Exec(`
		INSERT INTO user_keys (user_id, api_key) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET api_key = excluded.api_key`,
		userID, key)
	return err
}

func (r *SQLRegistry) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT user_id, api_key FROM user_keys`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]string)
	for rows.Next() {
		var user, key string
		if err := rows.Scan(&user, &key); err != nil {
			return nil, err
		}
		keys[user] = key
	}

	return keys, rows.Err()
}

// Remove deletes every record mapping to the key and returns the affected
// user ids for audit logging.
func (r *SQLRegistry) Remove(key string) ([]string, error) {
	rows, err := r.db.Query(`SELECT user_id FROM user_keys WHERE api_key = ?`, key)
	if err != nil {
		return nil, err
	}

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, user)
	}
	rows.Close()

	if len(users) == 0 {
		return nil, nil
	}

	if _, err := r.db.Exec(`DELETE FROM user_keys WHERE api_key = ?`, key); err != nil {
		return nil, err
	}

	return users, nil
}
