package store

import (
	"context"
	"sort"

	"github.com/starford/fathom/internal/models"
)

// Topics counts notes per topic, most frequent first. Ties keep the order in
// which topics first appeared.
func (db *DB) Topics(ctx context.Context) ([]models.TopicCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT topic, count(*) AS c
		FROM notes
		GROUP BY topic
		ORDER BY c DESC, min(id) ASC
	`)
	if err != nil {
		return nil, storageErr("topics", err)
	}
	defer rows.Close()

	out := []models.TopicCount{}
	for rows.Next() {
		var tc models.TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, storageErr("topics", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("topics", err)
	}
	return out, nil
}

// Tags counts tag occurrences across all notes, most frequent first. Ties
// keep the order in which tags first appeared (scanning notes by id).
func (db *DB) Tags(ctx context.Context) ([]models.TagCount, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT tags FROM notes WHERE tags IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, storageErr("tags", err)
	}
	defer rows.Close()

	out := []models.TagCount{}
	pos := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, storageErr("tags", err)
		}
		for _, tag := range models.SplitTags(raw) {
			if i, ok := pos[tag]; ok {
				out[i].Count++
				continue
			}
			pos[tag] = len(out)
			out = append(out, models.TagCount{Tag: tag, Count: 1})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("tags", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}
