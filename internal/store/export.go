package store

import (
	"context"
	"fmt"
)

// ExportAll returns the stored snapshots, optionally limited to one session.
func (s *SQLiteStore) ExportAll(ctx context.Context, sessionID string) ([]SessionExport, error) {
	var ids []string
	if sessionID != "" {
		if _, err := s.Session(ctx, sessionID); err != nil {
			return nil, err
		}
		ids = []string{sessionID}
	} else {
		rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY id`)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	out := make([]SessionExport, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", id, err)
		}
		out = append(out, SessionExport{ID: id, Snapshot: snap})
	}
	return out, nil
}

// Import stores sessions from an export, replacing any stored snapshot with
// the same ID. It returns the number of sessions imported.
func (s *SQLiteStore) Import(ctx context.Context, sessions []SessionExport) (int, error) {
	imported := 0
	for _, e := range sessions {
		if e.ID == "" {
			return imported, fmt.Errorf("session %d: missing id", imported+1)
		}
		if err := s.Save(ctx, e.ID, e.Snapshot); err != nil {
			return imported, fmt.Errorf("import %s: %w", e.ID, err)
		}
		imported++
	}
	return imported, nil
}
