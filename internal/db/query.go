package db

import (
	"strings"

	"gorm.io/gorm"
)

// Search narrows q to rows where every whitespace-separated term of raw
// appears, case-insensitively, in at least one of columns.
func Search(q *gorm.DB, raw string, columns ...string) *gorm.DB {
	for _, term := range strings.Fields(raw) {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

		clauses := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))
		for _, c := range columns {
			clauses = append(clauses, "LOWER("+c+") LIKE ? ESCAPE '\\'")
			args = append(args, pattern)
		}
		q = q.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
	return q
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Ordering applies a comma-separated ?ordering= value such as
// "-priority_score,created_at". Names are looked up in allowed (public name
// to column); unknown names are ignored and defaults apply when nothing
// usable is left. Rows are finally tie-broken by tieBreak.
func Ordering(q *gorm.DB, raw string, allowed map[string]string, defaults []string, tieBreak string) *gorm.DB {
	fields := parseOrdering(raw, allowed)
	if len(fields) == 0 {
		fields = parseOrdering(strings.Join(defaults, ","), allowed)
	}
	for _, f := range fields {
		q = q.Order(f)
	}
	if tieBreak != "" {
		q = q.Order(tieBreak)
	}
	return q
}

func parseOrdering(raw string, allowed map[string]string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		col, ok := allowed[strings.TrimPrefix(part, "-")]
		if !ok {
			continue
		}
		if desc {
			col += " DESC"
		}
		out = append(out, col)
	}
	return out
}
