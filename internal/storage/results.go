package storage

import (
	"database/sql"
	"encoding/json"

	"noiseprop/internal/aggregator"
)

// SaveResults writes the merged records and receiver summaries of a run in
// one transaction.
func (db *DB) SaveResults(runID string, records []aggregator.Record, summaries []aggregator.Summary) error {
	return db.WithTx(func(tx *sql.Tx) error {
		att, err := tx.Prepare(`
			INSERT INTO attenuation (run_id, receiver_id, source_id, levels_json)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return storageError("prepare attenuation insert", err)
		}
		defer att.Close()

		for _, r := range records {
			levels, err := json.Marshal(r.Levels)
			if err != nil {
				return storageError("encode levels", err)
			}
			if _, err := att.Exec(runID, r.ReceiverID, r.SourceID, string(levels)); err != nil {
				return storageError("insert attenuation", err)
			}
		}

		rcv, err := tx.Prepare(`
			INSERT INTO receiver_levels (run_id, receiver_id, power, level, processed, skipped)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return storageError("prepare receiver insert", err)
		}
		defer rcv.Close()

		for _, s := range summaries {
			if _, err := rcv.Exec(runID, s.ReceiverID, s.Power, s.Level, s.Processed, s.Skipped); err != nil {
				return storageError("insert receiver level", err)
			}
		}
		return nil
	})
}

// Attenuation returns the records of a run ordered by receiver then source.
// A nil receiverID returns every receiver.
func (db *DB) Attenuation(runID string, receiverID *int64) ([]aggregator.Record, error) {
	query := `SELECT receiver_id, source_id, levels_json FROM attenuation WHERE run_id = ?`
	args := []any{runID}
	if receiverID != nil {
		query += " AND receiver_id = ?"
		args = append(args, *receiverID)
	}
	query += " ORDER BY receiver_id, source_id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, storageError("query attenuation", err)
	}
	defer rows.Close()

	var out []aggregator.Record
	for rows.Next() {
		var (
			r      aggregator.Record
			levels string
		)
		if err := rows.Scan(&r.ReceiverID, &r.SourceID, &levels); err != nil {
			return nil, storageError("scan attenuation", err)
		}
		if err := json.Unmarshal([]byte(levels), &r.Levels); err != nil {
			return nil, storageError("decode levels", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("query attenuation", err)
	}
	return out, nil
}

// Summaries returns the receiver summaries of a run ordered by receiver.
func (db *DB) Summaries(runID string) ([]aggregator.Summary, error) {
	rows, err := db.conn.Query(`
		SELECT receiver_id, power, level, processed, skipped
		FROM receiver_levels WHERE run_id = ?
		ORDER BY receiver_id
	`, runID)
	if err != nil {
		return nil, storageError("query receiver levels", err)
	}
	defer rows.Close()

	var out []aggregator.Summary
	for rows.Next() {
		var s aggregator.Summary
		if err := rows.Scan(&s.ReceiverID, &s.Power, &s.Level, &s.Processed, &s.Skipped); err != nil {
			return nil, storageError("scan receiver level", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("query receiver levels", err)
	}
	return out, nil
}
