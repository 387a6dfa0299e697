package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entityColumns = `target, name, shared_table, trans_table, fingerprint, run_id, synced_at`

// RecordEntity stores the synchronized state of an entity, replacing any
// earlier record for the same target and name.
func (s *SQLiteStore) RecordEntity(ctx context.Context, rec EntityRecord) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if rec.SyncedAt.IsZero() {
		rec.SyncedAt = time.Now().UTC()
	}
	var trans *string
	if rec.TranslationTable != "" {
		trans = &rec.TranslationTable
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (target, name) DO UPDATE SET
		   shared_table = excluded.shared_table,
		   trans_table = excluded.trans_table,
		   fingerprint = excluded.fingerprint,
		   run_id = excluded.run_id,
		   synced_at = excluded.synced_at`,
		rec.Target, rec.Name, rec.SharedTable, trans, rec.Fingerprint, rec.RunID, rec.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record entity %s: %w", rec.Name, err)
	}
	return nil
}

// Entity returns the record of an entity, or nil when it was never synced.
func (s *SQLiteStore) Entity(ctx context.Context, target, name string) (*EntityRecord, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE target = ? AND name = ?`, target, name)
	rec, err := scanEntity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", name, err)
	}
	return rec, nil
}

// Entities lists the records of a target by name.
func (s *SQLiteStore) Entities(ctx context.Context, target string) ([]EntityRecord, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE target = ? ORDER BY name`, target)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EntityRecord
	for rows.Next() {
		rec, err := scanEntity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// DetectDrift compares current fingerprints, keyed by entity name, with the
// recorded ones. Entities never recorded are not reported.
func DetectDrift(ctx context.Context, s Store, target string, current map[string]string) ([]Drift, error) {
	recs, err := s.Entities(ctx, target)
	if err != nil {
		return nil, err
	}
	var out []Drift
	for _, rec := range recs {
		fp, ok := current[rec.Name]
		if ok && fp != rec.Fingerprint {
			out = append(out, Drift{Name: rec.Name, Recorded: rec.Fingerprint, Current: fp})
		}
	}
	return out, nil
}

func scanEntity(scan func(dest ...any) error) (*EntityRecord, error) {
	var (
		rec   EntityRecord
		trans sql.NullString
	)
	if err := scan(&rec.Target, &rec.Name, &rec.SharedTable, &trans, &rec.Fingerprint, &rec.RunID, &rec.SyncedAt); err != nil {
		return nil, err
	}
	rec.TranslationTable = trans.String
	return &rec, nil
}
