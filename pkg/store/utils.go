package store

import (
	"math"
	"strconv"
)

// BuildPageClause appends LIMIT and OFFSET clauses to query. A non-positive
// limit leaves the result unbounded.
func BuildPageClause(query string, offset, limit int) string {
	if limit <= 0 && offset <= 0 {
		return query
	}
	if limit <= 0 {
		// OFFSET needs a LIMIT in SQLite, and PostgreSQL rejects LIMIT -1.
		query = query + ` LIMIT ` + strconv.FormatInt(math.MaxInt64, 10)
	} else {
		query = query + ` LIMIT ` + strconv.Itoa(limit)
	}
	if offset > 0 {
		query = query + ` OFFSET ` + strconv.Itoa(offset)
	}
	return query
}
