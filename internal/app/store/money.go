package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseCents reads a monetary value into integer cents. JSON hands the
// handlers float64s; rows and defaults carry canonical "###.##" strings.
func ParseCents(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(math.Round(t * 100)), nil
	case int:
		return int64(t) * 100, nil
	case int64:
		return t * 100, nil
	case string:
		return parseCentsString(t)
	default:
		return 0, fmt.Errorf("unsupported monetary value %T", v)
	}
}

func parseCentsString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty monetary value")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("monetary value %q has more than two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("monetary value %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("monetary value %q: %w", s, err)
	}
	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return cents, nil
}

// FormatCents renders cents the way NUMERIC(12,2) comes back from the
// database: always two decimal places.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
