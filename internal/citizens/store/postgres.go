package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"

	"census/internal/citizens/graph"
	"census/internal/citizens/models"
	id "census/pkg/domain"
	"census/pkg/platform/sentinel"
	"census/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const (
	maxPatchAttempts = 5
	sqlDateLayout    = "2006-01-02"
)

const citizenColumns = `citizen_id, town, street, building, apartment, name, birth_date, gender, relatives`

// PostgresStore persists imports in PostgreSQL. Every citizen is one row and
// relatives are a BIGINT[] column, so a patch touches the target row plus one
// row per changed neighbor inside a single transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed citizen store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables and the import id sequence when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return wrap("apply schema", err)
	}
	return nil
}

// CreateImport inserts the import row and bulk-loads its citizens with COPY in
// one transaction. Readers see either the whole import or nothing.
func (s *PostgresStore) CreateImport(ctx context.Context, imp *models.Import) error {
	return s.inTx(ctx, "create import", func(ctx context.Context, t *sql.Tx) error {
		createdAt := imp.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := t.ExecContext(ctx,
			`INSERT INTO imports (import_id, created_at) VALUES ($1, $2)`,
			int64(imp.ID), createdAt)
		if err != nil {
			if uniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return wrap("insert import", err)
		}
		return copyCitizens(ctx, t, imp)
	})
}

func copyCitizens(ctx context.Context, t *sql.Tx, imp *models.Import) error {
	stmt, err := t.PrepareContext(ctx, pq.CopyIn("citizens",
		"import_id", "position", "citizen_id", "town", "street", "building",
		"apartment", "name", "birth_date", "gender", "relatives"))
	if err != nil {
		return wrap("prepare citizens copy", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i, c := range imp.Citizens {
		relatives := pq.Int64Array(id.CitizenIDsToInt64(normalized(c.Relatives)))
		_, err := stmt.ExecContext(ctx,
			int64(imp.ID), i, int64(c.CitizenID), c.Town, c.Street, c.Building,
			c.Apartment, c.Name, c.BirthDate.Format(sqlDateLayout), string(c.Gender), relatives)
		if err != nil {
			return wrap("copy citizen", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		if uniqueViolation(err) {
			return fmt.Errorf("copy citizens: %w", sentinel.ErrConflict)
		}
		return wrap("flush citizens copy", err)
	}
	return nil
}

// PatchCitizen applies patch atomically and returns the pre-update citizen.
//
// The target is read without a lock to learn its neighbors, then the target
// and every old and new neighbor are locked in ascending id order. If the
// target's relatives moved in between, the attempt restarts. Edge changes are
// applied with one bulk statement per direction and the number of touched
// rows is checked against the diff.
func (s *PostgresStore) PatchCitizen(ctx context.Context, importID id.ImportID, citizenID id.CitizenID, patch *models.CitizenPatch) (*models.Citizen, error) {
	var pre *models.Citizen
	var err error
	for attempt := 1; attempt <= maxPatchAttempts; attempt++ {
		err = s.inTx(ctx, "patch citizen", func(ctx context.Context, t *sql.Tx) error {
			p, patchErr := s.patchOnce(ctx, t, importID, citizenID, patch)
			pre = p
			return patchErr
		})
		if err == nil || !retryable(err) {
			break
		}
	}
	if retryable(err) {
		return nil, fmt.Errorf("patch citizen after %d attempts: %w: %w", maxPatchAttempts, sentinel.ErrConflict, err)
	}
	return pre, err
}

func (s *PostgresStore) patchOnce(ctx context.Context, t *sql.Tx, importID id.ImportID, citizenID id.CitizenID, patch *models.CitizenPatch) (*models.Citizen, error) {
	current, err := s.loadRelatives(ctx, importID, citizenID)
	if err != nil {
		return nil, err
	}

	next := current
	if patch.HasRelatives() {
		next = patch.NewRelatives()
	}
	locked, err := lockCitizens(ctx, t, importID, graph.Involved(citizenID, current, next))
	if err != nil {
		return nil, err
	}

	pre, ok := locked[citizenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !slices.Equal(pre.Relatives, current) {
		return nil, errStaleRead
	}
	for _, r := range next {
		if _, ok := locked[r]; !ok {
			return nil, sentinel.ErrUnknownReference
		}
	}

	post := patch.Apply(pre)
	if err := updateCitizen(ctx, t, importID, post); err != nil {
		return nil, err
	}
	if !patch.HasRelatives() {
		return pre, nil
	}

	added, removed := graph.Diff(pre.Relatives, post.Relatives)
	if err := linkNeighbors(ctx, t, importID, citizenID, graph.Without(added, citizenID)); err != nil {
		return nil, err
	}
	if err := unlinkNeighbors(ctx, t, importID, citizenID, graph.Without(removed, citizenID)); err != nil {
		return nil, err
	}
	return pre, nil
}

// loadRelatives reads the target's relatives outside the row lock, from the
// connection pool rather than the patch transaction.
func (s *PostgresStore) loadRelatives(ctx context.Context, importID id.ImportID, citizenID id.CitizenID) ([]id.CitizenID, error) {
	var relatives pq.Int64Array
	err := s.db.QueryRowContext(ctx,
		`SELECT relatives FROM citizens WHERE import_id = $1 AND citizen_id = $2`,
		int64(importID), int64(citizenID)).Scan(&relatives)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, wrap("load relatives", err)
	}
	return id.CitizenIDsFromInt64(relatives), nil
}

func lockCitizens(ctx context.Context, t *sql.Tx, importID id.ImportID, ids []id.CitizenID) (map[id.CitizenID]*models.Citizen, error) {
	rows, err := t.QueryContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens
		WHERE import_id = $1 AND citizen_id = ANY($2)
		ORDER BY citizen_id
		FOR UPDATE`,
		int64(importID), pq.Array(id.CitizenIDsToInt64(ids)))
	if err != nil {
		return nil, wrap("lock citizens", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	locked := make(map[id.CitizenID]*models.Citizen, len(ids))
	for rows.Next() {
		c, err := scanCitizen(rows)
		if err != nil {
			return nil, err
		}
		locked[c.CitizenID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("lock citizens", err)
	}
	return locked, nil
}

func updateCitizen(ctx context.Context, t *sql.Tx, importID id.ImportID, c *models.Citizen) error {
	res, err := t.ExecContext(ctx,
		`UPDATE citizens
		SET town = $3, street = $4, building = $5, apartment = $6, name = $7,
			birth_date = $8, gender = $9, relatives = $10
		WHERE import_id = $1 AND citizen_id = $2`,
		int64(importID), int64(c.CitizenID), c.Town, c.Street, c.Building, c.Apartment, c.Name,
		c.BirthDate.Format(sqlDateLayout), string(c.Gender), pq.Array(id.CitizenIDsToInt64(c.Relatives)))
	if err != nil {
		return wrap("update citizen", err)
	}
	return expectRows(res, 1, "update citizen")
}

func linkNeighbors(ctx context.Context, t *sql.Tx, importID id.ImportID, citizenID id.CitizenID, neighbors []id.CitizenID) error {
	if len(neighbors) == 0 {
		return nil
	}
	res, err := t.ExecContext(ctx,
		`UPDATE citizens
		SET relatives = CASE WHEN $2 = ANY(relatives) THEN relatives ELSE array_append(relatives, $2) END
		WHERE import_id = $1 AND citizen_id = ANY($3)`,
		int64(importID), int64(citizenID), pq.Array(id.CitizenIDsToInt64(neighbors)))
	if err != nil {
		return wrap("link neighbors", err)
	}
	return expectRows(res, len(neighbors), "link neighbors")
}

func unlinkNeighbors(ctx context.Context, t *sql.Tx, importID id.ImportID, citizenID id.CitizenID, neighbors []id.CitizenID) error {
	if len(neighbors) == 0 {
		return nil
	}
	res, err := t.ExecContext(ctx,
		`UPDATE citizens
		SET relatives = array_remove(relatives, $2)
		WHERE import_id = $1 AND citizen_id = ANY($3)`,
		int64(importID), int64(citizenID), pq.Array(id.CitizenIDsToInt64(neighbors)))
	if err != nil {
		return wrap("unlink neighbors", err)
	}
	return expectRows(res, len(neighbors), "unlink neighbors")
}

func expectRows(res sql.Result, want int, op string) error {
	got, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if got != int64(want) {
		return fmt.Errorf("%s: updated %d rows, expected %d: %w", op, got, want, sentinel.ErrInvalidState)
	}
	return nil
}

// ListCitizens returns the citizens of an import in import order. An import
// without citizens is distinguished from a missing one by the imports table.
func (s *PostgresStore) ListCitizens(ctx context.Context, importID id.ImportID) ([]*models.Citizen, error) {
	exec := tx.Exec(ctx, s.db)
	rows, err := exec.QueryContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE import_id = $1 ORDER BY position`,
		int64(importID))
	if err != nil {
		return nil, wrap("list citizens", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.Citizen
	for rows.Next() {
		c, err := scanCitizen(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list citizens", err)
	}
	if len(out) > 0 {
		return out, nil
	}

	var exists bool
	err = exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM imports WHERE import_id = $1)`, int64(importID)).Scan(&exists)
	if err != nil {
		return nil, wrap("check import", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return []*models.Citizen{}, nil
}

// Reset removes every import; citizens go with them via ON DELETE CASCADE.
func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := tx.Exec(ctx, s.db).ExecContext(ctx, `TRUNCATE imports CASCADE`); err != nil {
		return wrap("reset imports", err)
	}
	return nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return wrap("ping postgres", s.db.PingContext(ctx))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCitizen(row rowScanner) (*models.Citizen, error) {
	var (
		c         models.Citizen
		citizenID int64
		birthDate time.Time
		gender    string
		relatives pq.Int64Array
	)
	if err := row.Scan(&citizenID, &c.Town, &c.Street, &c.Building, &c.Apartment,
		&c.Name, &birthDate, &gender, &relatives); err != nil {
		return nil, wrap("scan citizen", err)
	}
	c.CitizenID = id.CitizenID(citizenID)
	c.BirthDate = models.NewBirthDate(birthDate.Year(), birthDate.Month(), birthDate.Day())
	c.Gender = models.Gender(gender)
	c.Relatives = id.CitizenIDsFromInt64(relatives)
	return &c, nil
}

func normalized(relatives []id.CitizenID) []id.CitizenID {
	c := models.Citizen{Relatives: relatives}
	c.NormalizeRelatives()
	return c.Relatives
}

// RunInTx runs fn in one transaction. Store and PostgresAllocator calls made
// with the context handed to fn join it.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.inTx(ctx, "transaction", func(ctx context.Context, _ *sql.Tx) error {
		return fn(ctx)
	})
}

// inTx runs fn in a transaction and publishes it through the context so
// nested store calls join it.
func (s *PostgresStore) inTx(ctx context.Context, op string, fn func(ctx context.Context, t *sql.Tx) error) error {
	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin "+op, err)
	}
	defer func() {
		_ = t.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, t), t); err != nil {
		return err
	}
	if err := t.Commit(); err != nil {
		return wrap("commit "+op, err)
	}
	return nil
}
