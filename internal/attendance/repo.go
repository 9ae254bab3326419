package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Repository persists attendance records and punches in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const punchColumns = `p.seq, p.id, p.record_id, p.fighter_id, r.day, p.action, p.at,
	p.latitude, p.longitude, p.missed, p.late, p.closes_day, p.source`

type punchRow struct {
	p         Punch
	action    string
	source    string
	lat, lng  sql.NullFloat64
	closesDay sql.NullTime
}

func (pr *punchRow) dest() []any {
	return []any{&pr.p.Seq, &pr.p.ID, &pr.p.RecordID, &pr.p.FighterID, &pr.p.Day, &pr.action, &pr.p.At,
		&pr.lat, &pr.lng, &pr.p.Missed, &pr.p.Late, &pr.closesDay, &pr.source}
}

func (pr *punchRow) punch() Punch {
	p := pr.p
	p.Action = Action(pr.action)
	p.Source = Source(pr.source)
	p.Day = Date(p.Day)
	if pr.lat.Valid && pr.lng.Valid {
		p.Location = &Geo{Latitude: pr.lat.Float64, Longitude: pr.lng.Float64}
	}
	if pr.closesDay.Valid {
		p.ClosesDay = Date(pr.closesDay.Time)
	}
	return p
}

func scanPunch(row interface{ Scan(...any) error }) (Punch, error) {
	var pr punchRow
	if err := row.Scan(pr.dest()...); err != nil {
		return Punch{}, err
	}
	return pr.punch(), nil
}

func (r *Repository) latest(ctx context.Context, where string, args ...any) (*Punch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+punchColumns+`
		FROM punches p
		JOIN attendance_records r ON r.id = p.record_id
		WHERE `+where+` AND NOT p.missed
		ORDER BY p.at DESC, p.seq DESC
		LIMIT 1
	`, args...)
	p, err := scanPunch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) LatestPunch(ctx context.Context, fighterID string) (*Punch, error) {
	return r.latest(ctx, `p.fighter_id = $1`, fighterID)
}

func (r *Repository) LatestPunchFrom(ctx context.Context, fighterID string, src Source) (*Punch, error) {
	return r.latest(ctx, `p.fighter_id = $1 AND p.source = $2`, fighterID, string(src))
}

// Append writes punches in one transaction. A transaction-scoped advisory lock on the
// fighter serializes writers across API instances.
func (r *Repository) Append(ctx context.Context, fighterID string, expectSeq int64, punches []Punch) ([]Punch, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, fighterID); err != nil {
		return nil, fmt.Errorf("advisory lock: %w", err)
	}

	var current sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT seq FROM punches
		WHERE fighter_id = $1 AND NOT missed
		ORDER BY at DESC, seq DESC
		LIMIT 1
	`, fighterID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if current.Int64 != expectSeq {
		return nil, ErrStale
	}

	recordIDs := make(map[string]string)
	written := make([]Punch, 0, len(punches))
	for _, p := range punches {
		day := FormatDate(p.Day)
		recordID, ok := recordIDs[day]
		if !ok {
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO attendance_records (id, fighter_id, day)
				VALUES ($1, $2, $3)
				ON CONFLICT (fighter_id, day) DO UPDATE SET updated_at = NOW()
				RETURNING id
			`, uuid.NewString(), fighterID, p.Day).Scan(&recordID); err != nil {
				return nil, fmt.Errorf("upsert record: %w", err)
			}
			recordIDs[day] = recordID
		}

		p.ID = uuid.NewString()
		p.RecordID = recordID
		p.FighterID = fighterID
		var lat, lng, closes any
		if p.Location != nil {
			lat, lng = p.Location.Latitude, p.Location.Longitude
		}
		if !p.ClosesDay.IsZero() {
			closes = p.ClosesDay
		}
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO punches (id, record_id, fighter_id, action, at, latitude, longitude, missed, late, closes_day, source)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING seq
		`, p.ID, recordID, fighterID, string(p.Action), p.At, lat, lng, p.Missed, p.Late, closes, string(p.Source)).Scan(&p.Seq); err != nil {
			return nil, fmt.Errorf("insert punch: %w", err)
		}
		written = append(written, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return written, nil
}

func (r *Repository) Records(ctx context.Context, q Query) ([]Record, error) {
	query := `
		SELECT r.id, r.fighter_id, r.day,
			EXISTS (
				SELECT 1 FROM punches m
				WHERE m.fighter_id = r.fighter_id AND m.missed AND m.closes_day = r.day
			) AS missed_checkout,
			` + punchColumns + `
		FROM attendance_records r
		JOIN punches p ON p.record_id = r.id`
	args := []any{}
	clauses := []string{}
	if q.FighterID != "" {
		clauses = append(clauses, "r.fighter_id = $"+strconv.Itoa(len(args)+1))
		args = append(args, q.FighterID)
	}
	if !q.From.IsZero() {
		clauses = append(clauses, "r.day >= $"+strconv.Itoa(len(args)+1))
		args = append(args, Date(q.From))
	}
	if !q.To.IsZero() {
		clauses = append(clauses, "r.day <= $"+strconv.Itoa(len(args)+1))
		args = append(args, Date(q.To))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY r.day DESC, r.fighter_id, p.at, p.seq"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			rec    Record
			missed bool
			pr     punchRow
		)
		dest := append([]any{&rec.ID, &rec.FighterID, &rec.Day, &missed}, pr.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		p := pr.punch()

		if n := len(res); n > 0 && res[n-1].ID == rec.ID {
			res[n-1].Punches = append(res[n-1].Punches, p)
			continue
		}
		rec.Day = Date(rec.Day)
		rec.MissedCheckOut = missed
		rec.Punches = []Punch{p}
		res = append(res, rec)
	}
	return res, rows.Err()
}
