package tools

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Args are the validated arguments of one tool call
type Args map[string]interface{}

// Has reports whether the argument was supplied
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns the argument as a trimmed string, or def when absent
func (a Args) String(name, def string) string {
	if s, ok := a[name].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return def
}

// Symbol returns the upper-cased symbol argument
func (a Args) Symbol() string {
	return strings.ToUpper(a.String("symbol", ""))
}

// Float returns the argument as float64, or def when absent
func (a Args) Float(name string, def float64) float64 {
	if f, ok := toFloat(a[name]); ok {
		return f
	}
	return def
}

// Int returns the argument as int, or def when absent
func (a Args) Int(name string, def int) int {
	switch n := a[name].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return def
}

// Bool returns the argument as bool, or def when absent
func (a Args) Bool(name string, def bool) bool {
	if b, ok := a[name].(bool); ok {
		return b
	}
	return def
}

// Decimal returns the argument as a decimal and whether it was present
func (a Args) Decimal(name string) (decimal.Decimal, bool) {
	switch v := a[name].(type) {
	case decimal.Decimal:
		return v, true
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d, true
		}
	}
	f, ok := toFloat(a[name])
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}
