package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists fighters in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const fighterColumns = `id, name, rfid, age, batch_no, created_at`

func scanFighter(row interface{ Scan(...any) error }) (*Fighter, error) {
	var f Fighter
	if err := row.Scan(&f.ID, &f.Name, &f.RFID, &f.Age, &f.BatchNo, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *Repository) Create(ctx context.Context, f *Fighter) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fighters (id, name, rfid, age, batch_no, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, f.ID, f.Name, f.RFID, f.Age, f.BatchNo, f.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrRFIDTaken
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (*Fighter, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fighterColumns+` FROM fighters WHERE id = $1`, id)
	return r.withDescriptors(ctx, row)
}

func (r *Repository) GetByRFID(ctx context.Context, rfid string) (*Fighter, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fighterColumns+` FROM fighters WHERE rfid = $1`, rfid)
	return r.withDescriptors(ctx, row)
}

func (r *Repository) withDescriptors(ctx context.Context, row *sql.Row) (*Fighter, error) {
	f, err := scanFighter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFighterNotFound
		}
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT descriptor, captured_at FROM face_descriptors
		WHERE fighter_id = $1 ORDER BY id
	`, f.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		d, err := scanDescriptor(rows)
		if err != nil {
			return nil, err
		}
		f.Descriptors = append(f.Descriptors, d)
	}
	return f, rows.Err()
}

func (r *Repository) GetMany(ctx context.Context, ids []string) (map[string]Fighter, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+fighterColumns+` FROM fighters WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]Fighter, len(ids))
	for rows.Next() {
		f, err := scanFighter(rows)
		if err != nil {
			return nil, err
		}
		out[f.ID] = *f
	}
	return out, rows.Err()
}

func (r *Repository) RFIDExists(ctx context.Context, rfid string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM fighters WHERE rfid = $1)`, rfid).Scan(&exists)
	return exists, err
}

func (r *Repository) ReplaceDescriptors(ctx context.Context, id string, descriptors []Descriptor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM fighters WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrFighterNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM face_descriptors WHERE fighter_id = $1`, id); err != nil {
		return err
	}
	for _, d := range descriptors {
		raw, err := json.Marshal(d.Values)
		if err != nil {
			return fmt.Errorf("encode descriptor: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO face_descriptors (fighter_id, descriptor, captured_at)
			VALUES ($1, $2, $3)
		`, id, raw, d.CapturedAt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE fighters SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) Descriptors(ctx context.Context) ([]Enrolled, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT fighter_id, descriptor, captured_at FROM face_descriptors ORDER BY fighter_id, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Enrolled
	for rows.Next() {
		var (
			e   Enrolled
			raw []byte
		)
		if err := rows.Scan(&e.FighterID, &raw, &e.Descriptor.CapturedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &e.Descriptor.Values); err != nil {
			// skip corrupt rows
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanDescriptor(rows *sql.Rows) (Descriptor, error) {
	var (
		d   Descriptor
		raw []byte
	)
	if err := rows.Scan(&raw, &d.CapturedAt); err != nil {
		return Descriptor{}, err
	}
	if err := json.Unmarshal(raw, &d.Values); err != nil {
		return Descriptor{}, fmt.Errorf("decode descriptor: %w", err)
	}
	return d, nil
}
