package supabase

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// ============================================================
// PostgREST query & decoding helpers
// ============================================================

// query builds a PostgREST path. Filters keep their operator prefix,
// e.g. "eq.abc" or "gte.2024-06-03".
func query(table string, params url.Values) string {
	if len(params) == 0 {
		return table
	}
	return table + "?" + params.Encode()
}

// decodeRows unmarshals a JSON array; an empty body means no rows.
func decodeRows[T any](body []byte, what string) ([]T, error) {
	if len(body) == 0 {
		return []T{}, nil
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// minorUnits converts a numeric column (integer or numeric(…,2)) to an
// integer amount, rounding half away from zero.
func minorUnits(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", n, err)
	}
	return d.Round(0).IntPart(), nil
}
