// Package sqlvalue implements C2, the SQL value encoder: converting native
// row values into escape-correct SQL-literal text for INSERT statements.
package sqlvalue

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
)

// EncodeRow converts an ordered sequence of native values into the
// comma-separated body of a VALUES tuple. It does not emit the enclosing
// parentheses; the caller owns statement assembly.
func EncodeRow(row []any) (string, error) {
	parts := make([]string, len(row))
	for i, v := range row {
		lit, err := Encode(v)
		if err != nil {
			return "", fmt.Errorf("column %d: %w", i, err)
		}
		parts[i] = lit
	}
	return strings.Join(parts, ", "), nil
}

// Encode converts a single native value into its SQL-literal text per the
// component's type-dispatch table.
func Encode(v any) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	switch val := v.(type) {
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return trimFloat(float64(val)), nil
	case float64:
		return trimFloat(val), nil
	case time.Time:
		return encodeTime(val), nil
	case DateTime:
		return quote(time.Time(val).Format(dateTimeLayout)), nil
	case Date:
		return quote(time.Time(val).Format(dateLayout)), nil
	case Time:
		return quote(time.Time(val).Format(timeLayout)), nil
	case Decimal:
		return string(val), nil
	case uuid.UUID:
		return quote(val.String()), nil
	case []byte:
		return "X'" + hex.EncodeToString(val) + "'", nil
	case map[string]any, []any:
		return encodeStructured(val)
	case string:
		return quote(val), nil
	case fmt.Stringer:
		return quote(val.String()), nil
	default:
		return quote(fmt.Sprintf("%v", val)), nil
	}
}

// DateTime, Date and Time let callers be explicit about which MySQL temporal
// literal form a time.Time should take; Encode alone always assumes the full
// datetime form for a bare time.Time.
type DateTime time.Time
type Date time.Time
type Time time.Time

// Decimal marks a value that is already decimal text (e.g. read from a
// DECIMAL/NUMERIC column as a driver-provided string) and must be emitted
// unquoted rather than as a quoted text literal.
type Decimal string

func encodeTime(t time.Time) string {
	return quote(t.Format(dateTimeLayout))
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

func encodeStructured(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode structured value: %w", err)
	}
	return quote(string(b)), nil
}

// quote wraps s in single quotes, doubling any embedded single quote.
// Double quotes are left untouched, matching the MySQL text-literal grammar.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
