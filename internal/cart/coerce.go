package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CoerceQuantity turns a caller-supplied quantity into an int. Fractional
// numbers are truncated toward zero; anything non-numeric is rejected.
func CoerceQuantity(v any) (int, error) {
	switch q := v.(type) {
	case int:
		return bounded(int64(q))
	case int32:
		return int(q), nil
	case int64:
		return bounded(q)
	case float64:
		return truncate(q)
	case json.Number:
		if i, err := q.Int64(); err == nil {
			return bounded(i)
		}
		f, err := q.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidQuantity, q.String())
		}
		return truncate(f)
	case string:
		return CoerceQuantity(json.Number(strings.TrimSpace(q)))
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidQuantity, v)
	}
}

func bounded(i int64) (int, error) {
	if i > MaxQuantity || i < -MaxQuantity {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidQuantity, i)
	}
	return int(i), nil
}

func truncate(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > MaxQuantity {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuantity, f)
	}
	return int(f), nil
}

// CoercePrice parses a price through its decimal string form so binary
// floating point never leaks into totals: 0.1 becomes exactly 0.1.
func CoercePrice(v any) (decimal.Decimal, error) {
	var s string
	switch p := v.(type) {
	case decimal.Decimal:
		return p, nil
	case string:
		s = strings.TrimSpace(p)
	case json.Number:
		s = p.String()
	case float64:
		s = strconv.FormatFloat(p, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(p), 'f', -1, 32)
	case int:
		s = strconv.Itoa(p)
	case int64:
		s = strconv.FormatInt(p, 10)
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported price type %T", v)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", s, err)
	}
	return d, nil
}
