package database

import (
	"time"

	"github.com/orthocare/orthocare/internal/patients"
)

// Empty Go values become NULL so PostgreSQL stores "no clinical date"
// rather than a zero date.

func pqDate(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(patients.DateLayout, s)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func fromPQDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(patients.DateLayout)
}

// likePattern escapes LIKE metacharacters in a user query.
func likePattern(q string) string {
	r := make([]rune, 0, len(q)+2)
	r = append(r, '%')
	for _, c := range q {
		if c == '%' || c == '_' || c == '\\' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(append(r, '%'))
}
