package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string         `json:"db_path"`
	DBSizeBytes     int64          `json:"db_size_bytes"`
	Sessions        int            `json:"sessions"`
	ShortTermTotal  int            `json:"short_term_records"`
	LongTermTotal   int            `json:"long_term_records"`
	SummariesStored int            `json:"summaries"`
	Speakers        []SpeakerStats `json:"speakers"`
}

// SpeakerStats holds per-speaker record counts.
type SpeakerStats struct {
	Speaker string `json:"speaker"`
	Count   int    `json:"count"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(json_array_length(summary)), 0) FROM sessions`).
		Scan(&st.Sessions, &st.SummariesStored)
	if err != nil {
		return st, err
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(tier = 'short'), 0), COALESCE(SUM(tier = 'long'), 0) FROM records`).
		Scan(&st.ShortTermTotal, &st.LongTermTotal)
	if err != nil {
		return st, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT speaker, COUNT(*) AS cnt
		FROM records WHERE tier = 'short'
		GROUP BY speaker ORDER BY cnt DESC, speaker`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var sp SpeakerStats
		if err := rows.Scan(&sp.Speaker, &sp.Count); err != nil {
			return st, err
		}
		st.Speakers = append(st.Speakers, sp)
	}

	return st, rows.Err()
}
