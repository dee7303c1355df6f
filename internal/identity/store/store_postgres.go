package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"idstatus/internal/identity/models"
	id "idstatus/pkg/domain"
	"idstatus/pkg/platform/tx"
)

const uniqueViolation = "23505"

const recordColumns = `id, subject_id, nino, application_reference, verification_channel,
	verification_status, confidence_level, last_updated, resolution_error, uplift_details`

// Postgres persists identity records in PostgreSQL. Uniqueness of
// application_reference is enforced by a partial unique index; Save also
// refuses to replace a stored reference with a conditional update.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn joins a transaction carried in ctx, falling back to the pool.
func (s *Postgres) conn(ctx context.Context) queryer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *Postgres) FindByID(ctx context.Context, recordID id.RecordID) (*models.IdentityRecord, error) {
	return s.findOne(ctx, `SELECT `+recordColumns+` FROM identity_records WHERE id = $1`, recordID.String())
}

func (s *Postgres) FindByNino(ctx context.Context, nino id.Nino) (*models.IdentityRecord, error) {
	return s.findOne(ctx, `SELECT `+recordColumns+` FROM identity_records
		WHERE nino = $1 ORDER BY last_updated DESC LIMIT 1`, nino.String())
}

func (s *Postgres) FindBySubjectID(ctx context.Context, subjectID id.SubjectID) (*models.IdentityRecord, error) {
	return s.findOne(ctx, `SELECT `+recordColumns+` FROM identity_records
		WHERE subject_id = $1 ORDER BY last_updated DESC LIMIT 1`, subjectID.String())
}

func (s *Postgres) FindByApplicationReference(ctx context.Context, ref id.ApplicationReference) (*models.IdentityRecord, error) {
	if ref.IsEmpty() {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, `SELECT `+recordColumns+` FROM identity_records
		WHERE application_reference = $1`, ref.String())
}

func (s *Postgres) findOne(ctx context.Context, query string, arg any) (*models.IdentityRecord, error) {
	record, err := scanRecord(s.conn(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find identity record: %w", err)
	}
	return record, nil
}

// Save inserts a record without an ID or updates an existing one. The update
// only matches while the stored reference is NULL or equal to the incoming
// one, which makes "set the reference if still empty" a single statement.
func (s *Postgres) Save(ctx context.Context, record *models.IdentityRecord) (*models.IdentityRecord, error) {
	next := record.Clone()
	uplift, err := encodeUplift(next.UpliftDetails)
	if err != nil {
		return nil, err
	}

	if !next.IsPersisted() {
		next.ID = id.NewRecordID()
		_, err := s.conn(ctx).ExecContext(ctx, `
			INSERT INTO identity_records (`+recordColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			next.ID.String(), next.SubjectID.String(), next.Nino.String(), nullableRef(next.ApplicationReference),
			next.VerificationChannel, next.VerificationStatus, string(next.ConfidenceLevel),
			next.LastUpdated, next.ResolutionError, uplift,
		)
		if err != nil {
			return nil, translateWriteError("insert identity record", err)
		}
		return next, nil
	}

	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE identity_records SET
			subject_id = $2,
			nino = $3,
			application_reference = $4,
			verification_channel = $5,
			verification_status = $6,
			confidence_level = $7,
			last_updated = $8,
			resolution_error = $9,
			uplift_details = $10
		WHERE id = $1
		  AND (application_reference IS NULL OR application_reference = $4)`,
		next.ID.String(), next.SubjectID.String(), next.Nino.String(), nullableRef(next.ApplicationReference),
		next.VerificationChannel, next.VerificationStatus, string(next.ConfidenceLevel),
		next.LastUpdated, next.ResolutionError, uplift,
	)
	if err != nil {
		return nil, translateWriteError("update identity record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update identity record: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.conn(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM identity_records WHERE id = $1)`, next.ID.String(),
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("update identity record: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrApplicationReferenceConflict
	}
	return next, nil
}

func translateWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrApplicationReferenceConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.IdentityRecord, error) {
	var (
		recordID    string
		subjectID   string
		nino        string
		ref         sql.NullString
		channel     string
		status      string
		confidence  string
		lastUpdated time.Time
		resolution  string
		uplift      []byte
	)
	if err := row.Scan(&recordID, &subjectID, &nino, &ref, &channel, &status, &confidence, &lastUpdated, &resolution, &uplift); err != nil {
		return nil, err
	}
	parsedID, err := id.ParseRecordID(recordID)
	if err != nil {
		return nil, fmt.Errorf("corrupt record id %q: %w", recordID, err)
	}
	details, err := decodeUplift(uplift)
	if err != nil {
		return nil, err
	}
	return &models.IdentityRecord{
		ID:                   parsedID,
		SubjectID:            id.SubjectID(subjectID),
		Nino:                 id.Nino(nino),
		ApplicationReference: id.ApplicationReference(ref.String),
		VerificationChannel:  channel,
		VerificationStatus:   status,
		ConfidenceLevel:      models.ConfidenceLevel(confidence),
		LastUpdated:          lastUpdated.UTC(),
		ResolutionError:      resolution,
		UpliftDetails:        details,
	}, nil
}

func nullableRef(ref id.ApplicationReference) sql.NullString {
	return sql.NullString{String: ref.String(), Valid: !ref.IsEmpty()}
}

// encodeUplift returns a JSON string or nil; lib/pq would send []byte as bytea.
func encodeUplift(u *models.UpliftDetails) (any, error) {
	if u == nil {
		return nil, nil
	}
	b, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode uplift details: %w", err)
	}
	return string(b), nil
}

func decodeUplift(b []byte) (*models.UpliftDetails, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var u models.UpliftDetails
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, fmt.Errorf("decode uplift details: %w", err)
	}
	return &u, nil
}
