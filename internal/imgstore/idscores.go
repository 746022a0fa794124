package imgstore

import (
	"fmt"
	"strconv"
	"strings"
)

// IDScore is one <index>:<score> tuple of an img_ids column.
type IDScore struct {
	ID    int64
	Score float64
}

// EncodeIDScores renders tuples as "1:0.9,2:0.75".
func EncodeIDScores(items []IDScore) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(it.ID, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(it.Score, 'f', -1, 64))
	}
	return b.String()
}

// ParseIDScores parses the img_ids column format. A trailing comma is
// tolerated.
func ParseIDScores(s string) ([]IDScore, error) {
	var items []IDScore
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, score, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("imgstore: bad id:score item %q", part)
		}
		idv, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("imgstore: bad id in %q: %w", part, err)
		}
		scorev, err := strconv.ParseFloat(score, 64)
		if err != nil {
			return nil, fmt.Errorf("imgstore: bad score in %q: %w", part, err)
		}
		items = append(items, IDScore{ID: idv, Score: scorev})
	}
	return items, nil
}
