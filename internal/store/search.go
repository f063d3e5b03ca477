package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/response-guard/internal/lexicon"
	"github.com/rcliao/response-guard/internal/model"
)

// SearchParams holds parameters for searching stored records.
type SearchParams struct {
	Session string
	Query   string
	Speaker model.Speaker
	Limit   int
}

// SearchResult is one matching record. Higher Rank is a better match.
type SearchResult struct {
	Session string             `json:"session"`
	Tier    Tier               `json:"tier"`
	Record  model.MemoryRecord `json:"record"`
	Rank    float64            `json:"rank"`
}

// ErrEmptyQuery is returned when a search query has no word terms.
var ErrEmptyQuery = errors.New("search query has no terms")

// Search finds records whose content matches any query term, best match
// first. A record held in both tiers is reported once.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	match := ftsQuery(p.Query)
	if match == "" {
		return nil, ErrEmptyQuery
	}

	where := []string{"records_fts MATCH ?"}
	args := []interface{}{match}
	if p.Session != "" {
		where = append(where, "r.session_id = ?")
		args = append(args, p.Session)
	}
	if p.Speaker != "" {
		where = append(where, "r.speaker = ?")
		args = append(args, string(p.Speaker))
	}

	query := fmt.Sprintf(`
		SELECT bm25(records_fts) AS score, r.session_id, r.tier,
		       r.id, r.speaker, r.content, r.created_at, r.emotion_tags, r.topic_tags, r.importance
		FROM records_fts
		JOIN records r ON r.rowid = records_fts.rowid
		WHERE %s
		ORDER BY score, r.created_at DESC
		LIMIT ?`, strings.Join(where, " AND "))
	// Over-fetch so deduplicated tiers still fill the limit.
	args = append(args, limit*2)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	seen := map[string]bool{}
	for rows.Next() {
		var res SearchResult
		var tier string
		var score float64
		r, err := scanRecord(rows, &score, &res.Session, &tier)
		if err != nil {
			return nil, err
		}
		key := res.Session + "/" + r.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Tier = Tier(tier)
		res.Record = r
		res.Rank = -score
		results = append(results, res)
		if len(results) == limit {
			break
		}
	}
	return results, rows.Err()
}

// ftsQuery turns free text into an FTS5 expression matching any of its
// content words, either verbatim or by stem prefix.
func ftsQuery(text string) string {
	terms := lexicon.ContentTokens(text)
	if len(terms) == 0 {
		terms = lexicon.Tokens(text)
	}
	var parts []string
	seen := map[string]bool{}
	add := func(expr string) {
		if !seen[expr] {
			seen[expr] = true
			parts = append(parts, expr)
		}
	}
	for _, t := range terms {
		add(quote(t))
		if stem := lexicon.Stem(t); stem != t {
			add(quote(stem) + "*")
		}
	}
	return strings.Join(parts, " OR ")
}

func quote(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}
