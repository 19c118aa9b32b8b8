package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"regflow/internal/document/models"
	"regflow/pkg/platform/sentinel"
	"regflow/pkg/requestcontext"
)

//go:embed schema.sql
var schema string

// PostgresStore persists document records in PostgreSQL. Subscriptions are
// served by a Notifier attached with Listen.
type PostgresStore struct {
	db       *sql.DB
	notifier *Notifier
}

// NewPostgres constructs a PostgreSQL-backed document store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the table, index and change-notification trigger.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate registration_documents: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) (models.ID, error) {
	id := rec.ID
	if id == "" {
		id = models.ID(uuid.NewString())
	}
	registration, err := json.Marshal(rec.Registration)
	if err != nil {
		return "", fmt.Errorf("marshal registration: %w", err)
	}
	now := requestcontext.Now(ctx)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO registration_documents (
			id, owner_id, registration, license_number, regulator_number,
			status, review_notes, reviewed_by, payment_completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		string(id), rec.OwnerID, registration, rec.LicenseNumber, rec.RegulatorNumber,
		string(rec.Status), rec.ReviewNotes, rec.ReviewedBy, nullTime(rec.PaymentCompletedAt), now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", sentinel.ErrConflict
		}
		return "", fmt.Errorf("insert registration document: %w", err)
	}
	return id, nil
}

const selectColumns = `id, owner_id, registration, license_number, regulator_number,
	status, review_notes, reviewed_by, payment_completed_at, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id models.ID) (*models.Record, error) {
	if _, err := uuid.Parse(string(id)); err != nil {
		return nil, sentinel.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM registration_documents WHERE id = $1`, string(id))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find registration document: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Update(ctx context.Context, id models.ID, patch models.Patch) error {
	if _, err := uuid.Parse(string(id)); err != nil {
		return sentinel.ErrNotFound
	}
	var status sql.NullString
	if patch.Status != nil {
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE registration_documents SET
			status = COALESCE($2, status),
			review_notes = COALESCE($3, review_notes),
			reviewed_by = COALESCE($4, reviewed_by),
			payment_completed_at = COALESCE($5, payment_completed_at),
			updated_at = $6
		WHERE id = $1`,
		string(id), status, nullString(patch.ReviewNotes), nullString(patch.ReviewedBy),
		nullTime(patch.PaymentCompletedAt), requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("update registration document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, filter models.Filter) ([]*models.Record, error) {
	statuses := make([]string, len(filter.Statuses))
	for i, st := range filter.Statuses {
		statuses[i] = string(st)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM registration_documents
		WHERE ($1 = '' OR owner_id = $1)
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at`,
		filter.OwnerID, pq.Array(statuses),
	)
	if err != nil {
		return nil, fmt.Errorf("query registration documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration document: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registration documents: %w", err)
	}
	return out, nil
}

// Subscribe delivers the current snapshot and then each change notified by
// PostgreSQL. It requires a Notifier from Listen.
func (s *PostgresStore) Subscribe(ctx context.Context, id models.ID, fn models.Listener) (models.CancelFunc, error) {
	if s.notifier == nil {
		return nil, fmt.Errorf("subscribe registration document: %w", sentinel.ErrUnavailable)
	}
	cancel := s.notifier.add(id, fn)
	rec, err := s.Get(ctx, id)
	switch {
	case err == nil:
		fn(rec, nil)
	case errors.Is(err, sentinel.ErrNotFound):
		fn(nil, sentinel.ErrNotFound)
	default:
		cancel()
		return nil, err
	}
	return cancel, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec          models.Record
		id, status   string
		registration []byte
		paidAt       sql.NullTime
	)
	if err := row.Scan(&id, &rec.OwnerID, &registration, &rec.LicenseNumber, &rec.RegulatorNumber,
		&status, &rec.ReviewNotes, &rec.ReviewedBy, &paidAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.ID = models.ID(id)
	rec.Status = models.Status(status)
	if paidAt.Valid {
		t := paidAt.Time
		rec.PaymentCompletedAt = &t
	}
	if err := json.Unmarshal(registration, &rec.Registration); err != nil {
		return nil, fmt.Errorf("unmarshal registration: %w", err)
	}
	return &rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
