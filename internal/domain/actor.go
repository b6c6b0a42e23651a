package domain

import "database/sql"

// Actor is a row of the role directory: someone who can hold assignments.
// The directory is read-only to the engine; the host maintains it.
type Actor struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name"`
	Role    sql.NullString `json:"role"`
	ApiKey  sql.NullString `json:"-"`
	IsAdmin bool           `json:"isAdmin"`
	Created sql.NullTime   `json:"created"`
	Enabled sql.NullBool   `json:"enabled"`
}
