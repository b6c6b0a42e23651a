package repository

import (
	"database/sql"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
)

const ACTOR_COLUMNS = ` id, name, role, api_key, is_admin, created, enabled `

// ActorRepository is the bundled role directory: the actors table holds every
// principal that can receive assignments, plus their hashed API keys for the
// HTTP surface. It satisfies core.RoleDirectory.
type ActorRepository struct {
	db    DBTX
	clock core.Clock
}

func NewActorRepository(db DBTX, clock core.Clock) *ActorRepository {
	return &ActorRepository{db: db, clock: clock}
}

func scanActor(row interface{ Scan(...interface{}) error }) (*domain.Actor, error) {
	var a domain.Actor
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Role,
		&a.ApiKey,
		&a.IsAdmin,
		&a.Created,
		&a.Enabled,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ActorRepository) Save(a *domain.Actor) (int64, error) {
	if !a.Created.Valid {
		a.Created = sql.NullTime{Time: r.clock.Now().UTC(), Valid: true}
	}
	vals := []interface{}{a.Name, a.Role, a.ApiKey, a.IsAdmin, formatDateInDatabaseNull(a.Created), a.Enabled}
	base := `INSERT INTO actors (name, role, api_key, is_admin, created, enabled)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `)`
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&a.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				a.ID = id
			}
		}
	}
	return a.ID, err
}

// ResolveEligibleActors returns all enabled actors matching the role filter.
// An empty filter matches every known actor.
func (r *ActorRepository) ResolveEligibleActors(roleFilter string) ([]*domain.Actor, error) {
	query := `
		SELECT ` + ACTOR_COLUMNS + `
		FROM actors
		WHERE enabled = ` + placeholder(1) + `
	`
	args := []interface{}{true}
	if roleFilter != "" {
		query += ` AND role = ` + placeholder(2)
		args = append(args, roleFilter)
	}
	query += ` ORDER BY id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []*domain.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

// FindActorByID returns (nil, nil) when the actor does not exist.
func (r *ActorRepository) FindActorByID(id int64) (*domain.Actor, error) {
	query := `
		SELECT ` + ACTOR_COLUMNS + `
		FROM actors WHERE id = ` + placeholder(1) + `
	`
	a, err := scanActor(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// FindFirstAdmin is the fallback author for system actions when
// AFLOW_SYSTEM_ACTOR_ID is not set.
func (r *ActorRepository) FindFirstAdmin() (*domain.Actor, error) {
	query := `
		SELECT ` + ACTOR_COLUMNS + `
		FROM actors
		WHERE is_admin = ` + placeholder(1) + ` AND enabled = ` + placeholder(2) + `
		ORDER BY id
		LIMIT 1
	`
	a, err := scanActor(r.db.QueryRow(query, true, true))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *ActorRepository) FindAll() ([]*domain.Actor, error) {
	query := `
		SELECT ` + ACTOR_COLUMNS + `
		FROM actors
		ORDER BY id
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []*domain.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func (r *ActorRepository) UpdateApiKey(id int64, hashedKey string) error {
	query := `
		UPDATE actors
		SET api_key = ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, hashedKey, id)
	return err
}
