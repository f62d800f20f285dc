package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfigNotFound is returned when a saved relationship configuration
// does not exist.
var ErrConfigNotFound = errors.New("relationship configuration not found")

// SavedConfig is one named join-designer configuration.
type SavedConfig struct {
	Name        string `json:"name"`
	ConfigJSON  string `json:"config"`
	CreatedDate string `json:"created_date"`
	UpdatedDate string `json:"updated_date"`
}

// SaveRelationshipConfig stores (or replaces) a named configuration blob.
func (s *Store) SaveRelationshipConfig(dbName, name, configJSON string) error {
	if name == "" {
		return fmt.Errorf("%w: empty config name", ErrInvalidName)
	}
	db, err := s.DB(dbName)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.Exec(`
		INSERT INTO relationship_configs (name, config_json, created_date, updated_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			config_json = excluded.config_json,
			updated_date = excluded.updated_date`,
		name, configJSON, now, now,
	)
	if err != nil {
		return fmt.Errorf("saving relationship config %s: %w", name, err)
	}
	return nil
}

// LoadRelationshipConfig fetches one named configuration.
func (s *Store) LoadRelationshipConfig(dbName, name string) (*SavedConfig, error) {
	db, err := s.DB(dbName)
	if err != nil {
		return nil, err
	}
	var c SavedConfig
	err = db.QueryRow(`
		SELECT name, config_json, created_date, updated_date
		FROM relationship_configs WHERE name = ?`, name,
	).Scan(&c.Name, &c.ConfigJSON, &c.CreatedDate, &c.UpdatedDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	return &c, nil
}

// ListRelationshipConfigs returns all saved configurations, newest first.
func (s *Store) ListRelationshipConfigs(dbName string) ([]SavedConfig, error) {
	db, err := s.DB(dbName)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`
		SELECT name, config_json, created_date, updated_date
		FROM relationship_configs ORDER BY updated_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing relationship configs: %w", err)
	}
	defer rows.Close()

	var out []SavedConfig
	for rows.Next() {
		var c SavedConfig
		if err := rows.Scan(&c.Name, &c.ConfigJSON, &c.CreatedDate, &c.UpdatedDate); err != nil {
			return nil, fmt.Errorf("scanning relationship config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteRelationshipConfig removes one named configuration.
func (s *Store) DeleteRelationshipConfig(dbName, name string) error {
	db, err := s.DB(dbName)
	if err != nil {
		return err
	}
	res, err := db.Exec(`DELETE FROM relationship_configs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting relationship config %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	return nil
}
