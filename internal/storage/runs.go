package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"noiseprop/internal/aggregator"
	perrors "noiseprop/internal/errors"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run describes one propagation run.
type Run struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"createdAt"`
	Scene     string           `json:"scene"`
	Config    json.RawMessage  `json:"config"`
	Sources   int              `json:"sources"`
	Receivers int              `json:"receivers"`
	Bands     []float64        `json:"bands"`
	Status    RunStatus        `json:"status"`
	Error     string           `json:"error,omitempty"`
	Duration  time.Duration    `json:"duration"`
	Stats     aggregator.Stats `json:"stats"`
}

// NewRunID returns a fresh run id.
func NewRunID() string {
	return uuid.NewString()
}

// CreateRun records a run in the running state. An empty ID is generated.
func (db *DB) CreateRun(r *Run) error {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.Status = StatusRunning
	if len(r.Config) == 0 {
		r.Config = json.RawMessage("{}")
	}
	bands, err := json.Marshal(r.Bands)
	if err != nil {
		return storageError("encode bands", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO runs (id, created_at, scene, config_json, sources, receivers, bands_json, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.CreatedAt.Format(time.RFC3339Nano), r.Scene, string(r.Config), r.Sources, r.Receivers, string(bands), string(r.Status))
	if err != nil {
		return storageError("create run", err)
	}
	return nil
}

// FinishRun closes a run. A non-nil runErr marks it failed.
func (db *DB) FinishRun(id string, stats aggregator.Stats, duration time.Duration, runErr error) error {
	status, msg := StatusCompleted, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return storageError("encode stats", err)
	}

	res, err := db.conn.Exec(`
		UPDATE runs SET status = ?, error = ?, duration_ms = ?, stats_json = ?
		WHERE id = ?
	`, string(status), nullString(msg), duration.Milliseconds(), string(statsJSON), id)
	if err != nil {
		return storageError("finish run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return perrors.Newf(perrors.StorageFailed, "run %s not found", id)
	}
	return nil
}

// GetRun returns a run by id.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(selectRun+" WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, perrors.Newf(perrors.StorageFailed, "run %s not found", id)
	}
	return r, err
}

// LatestRun returns the most recently created run.
func (db *DB) LatestRun() (*Run, error) {
	row := db.conn.QueryRow(selectRun + " ORDER BY created_at DESC LIMIT 1")
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, perrors.Newf(perrors.StorageFailed, "no run recorded")
	}
	return r, err
}

// ListRuns returns the runs, newest first. A limit of zero lists them all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := selectRun + " ORDER BY created_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, storageError("list runs", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list runs", err)
	}
	return out, nil
}

// DeleteRun removes a run and its results.
func (db *DB) DeleteRun(id string) error {
	return db.WithTx(func(tx *sql.Tx) error {
		for _, table := range []string{"paths", "attenuation", "receiver_levels"} {
			if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
				return storageError("delete "+table, err)
			}
		}
		if _, err := tx.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
			return storageError("delete run", err)
		}
		return nil
	})
}

const selectRun = `
	SELECT id, created_at, scene, config_json, sources, receivers, bands_json, status, error, duration_ms, stats_json
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                 Run
		createdAt, config string
		bands, status     string
		errMsg, stats     sql.NullString
		durationMs        int64
	)
	err := row.Scan(&r.ID, &createdAt, &r.Scene, &config, &r.Sources, &r.Receivers, &bands, &status, &errMsg, &durationMs, &stats)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storageError("scan run", err)
	}

	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, storageError("parse run time", err)
	}
	if err := json.Unmarshal([]byte(bands), &r.Bands); err != nil {
		return nil, storageError("decode bands", err)
	}
	if stats.Valid {
		if err := json.Unmarshal([]byte(stats.String), &r.Stats); err != nil {
			return nil, storageError("decode stats", err)
		}
	}
	r.Config = json.RawMessage(config)
	r.Status = RunStatus(status)
	r.Error = errMsg.String
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
