package verify

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// moneyRat reads any of the shapes a monetary amount shows up in: the app's
// display string ("$1,500.00"), a bare decimal string ("1500", "1500.00"),
// a JSON number (1500.00) or the database's numeric text. All of them land
// on the same exact rational so "$800.00" equals 800.0 equals "800".
func moneyRat(v any) (*big.Rat, error) {
	switch t := v.(type) {
	case string:
		return moneyRatString(t)
	case []byte:
		return moneyRatString(string(t))
	case float64:
		// Shortest decimal that round-trips, so 800.00 stays exactly 800.
		return moneyRatString(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return new(big.Rat).SetInt64(int64(t)), nil
	case int64:
		return new(big.Rat).SetInt64(t), nil
	case nil:
		return nil, fmt.Errorf("monetary value is NULL")
	default:
		return nil, fmt.Errorf("unsupported monetary value %T", v)
	}
}

func moneyRatString(s string) (*big.Rat, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if cleaned == "" {
		return nil, fmt.Errorf("empty monetary value %q", s)
	}
	rat, ok := new(big.Rat).SetString(cleaned)
	if !ok {
		return nil, fmt.Errorf("cannot read monetary value %q", s)
	}
	return rat, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// timeValue reads a timestamp from the driver's time.Time or from the
// common textual layouts.
func timeValue(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTimestamp(t)
	case []byte:
		return parseTimestamp(string(t))
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is NULL")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp value %T", v)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot read timestamp %q", s)
}

// intValue coerces whole numbers; fractions and non-numeric text fail.
func intValue(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		n := int64(t)
		if float64(n) != t {
			return 0, fmt.Errorf("value %v is not a whole number", t)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot read integer %q", t)
		}
		return n, nil
	case []byte:
		return intValue(string(t))
	case nil:
		return 0, fmt.Errorf("integer is NULL")
	default:
		return 0, fmt.Errorf("unsupported integer value %T", v)
	}
}

func boolValue(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case nil:
		return false, fmt.Errorf("boolean is NULL")
	default:
		return false, fmt.Errorf("unsupported boolean value %T", v)
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// textDiff renders a compact character diff with [-removed] and [+added]
// markers, expected on the left.
func textDiff(expected, got string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(expected, got, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var sb strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			sb.WriteString("[-")
			sb.WriteString(d.Text)
			sb.WriteString("]")
		case diffmatchpatch.DiffInsert:
			sb.WriteString("[+")
			sb.WriteString(d.Text)
			sb.WriteString("]")
		default:
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}
