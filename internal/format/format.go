package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"docextract/internal/domain"
)

// Default per-kind patterns.
const (
	DefaultEmailPattern  = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	DefaultPhonePattern  = `^\+?[\d\s\-().]{10,}$`
	DefaultDatePattern   = `^\d{1,2}[/-]\d{1,2}[/-]\d{2,4}$`
	DefaultAmountPattern = `^[$€£₹]?\s?-?(\d{1,3}(,\d{3})+|\d+)(\.\d{1,2})?$`
)

const (
	NoteValid = "Valid"
	NoteEmpty = "Field is empty"
)

// Patterns holds the regular expressions used per value kind.
type Patterns struct {
	Email  string
	Phone  string
	Date   string
	Amount string
}

// DefaultPatterns returns the built-in patterns.
func DefaultPatterns() Patterns {
	return Patterns{
		Email:  DefaultEmailPattern,
		Phone:  DefaultPhonePattern,
		Date:   DefaultDatePattern,
		Amount: DefaultAmountPattern,
	}
}

// Checker validates values against their expected kind. It is safe for concurrent use.
type Checker struct {
	patterns map[domain.ValueKind]*regexp.Regexp
}

// NewChecker compiles p. Empty entries fall back to the defaults.
func NewChecker(p Patterns) (*Checker, error) {
	def := DefaultPatterns()
	raw := map[domain.ValueKind][2]string{
		domain.KindEmail:  {p.Email, def.Email},
		domain.KindPhone:  {p.Phone, def.Phone},
		domain.KindDate:   {p.Date, def.Date},
		domain.KindAmount: {p.Amount, def.Amount},
	}
	c := &Checker{patterns: make(map[domain.ValueKind]*regexp.Regexp, len(raw))}
	for kind, pair := range raw {
		expr := pair[0]
		if expr == "" {
			expr = pair[1]
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s pattern: %v", domain.ErrInvalidConfiguration, kind, err)
		}
		c.patterns[kind] = re
	}
	return c, nil
}

// MustDefault returns a Checker with the default patterns.
func MustDefault() *Checker {
	c, err := NewChecker(DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return c
}

// HasValidator reports whether kind has a format check. Text has none.
func (c *Checker) HasValidator(kind domain.ValueKind) bool {
	_, ok := c.patterns[kind]
	return ok
}

// Check validates value against kind and returns a short note.
func (c *Checker) Check(kind domain.ValueKind, value string) (bool, string) {
	re, ok := c.patterns[kind]
	if !ok {
		return true, NoteValid
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return false, NoteEmpty
	}
	if re.MatchString(v) {
		return true, NoteValid
	}
	if kind == domain.KindDate {
		if _, err := ParseDate(v); err == nil {
			return true, NoteValid
		}
	}
	return false, fmt.Sprintf("Does not match expected %s format", kind)
}

// ParseDate tries common date formats.
func ParseDate(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"02-01-2006",
		"02/01/2006",
		"01-02-2006",
		"01/02/2006",
		"1/2/2006",
		"1/2/06",
		"2006/01/02",
		"02 Jan 2006",
		"2 Jan 2006",
		"Jan 02, 2006",
		"Jan 2, 2006",
		"January 02, 2006",
		"January 2, 2006",
		"2 January 2006",
		"2006-01-02T15:04:05Z07:00",
	}
	s = strings.TrimSpace(s)
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %s", s)
}

var amountNoise = strings.NewReplacer("$", "", "€", "", "£", "", "₹", "", ",", "", " ", "", "USD", "", "INR", "", "EUR", "")

// ParseAmount parses a currency amount, ignoring symbols and thousands separators.
// A value wrapped in parentheses is negative.
func ParseAmount(s string) (float64, error) {
	v := strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		neg = true
		v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	}
	v = amountNoise.Replace(strings.ToUpper(v))
	if v == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount: %s", s)
	}
	if neg {
		f = -f
	}
	return f, nil
}
