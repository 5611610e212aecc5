package evaluator

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Kind is the recognized type of a value.
type Kind int

// Value kinds.
const (
	KindNone Kind = iota
	KindInt
	KindFloat
	KindDate
	KindText
	KindList
)

var kindNames = [...]string{"none", "int", "float", "date", "text", "list"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Numeric reports whether the kind holds a number.
func (k Kind) Numeric() bool { return k == KindInt || k == KindFloat }

// Value is a resolved step value. Raw keeps the text a value was cleaned
// from; computed values have no Raw.
type Value struct {
	Kind    Kind
	Num     float64
	Date    time.Time
	HasYear bool
	Text    string
	List    []string
	Raw     string
}

// Int returns an integer value.
func Int(n int64) Value { return Value{Kind: KindInt, Num: float64(n)} }

// Float returns a float value.
func Float(f float64) Value { return Value{Kind: KindFloat, Num: f} }

// Text returns an untyped text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s, Raw: s} }

// List returns a multi-span value.
func List(spans ...string) Value { return Value{Kind: KindList, List: spans} }

// Resolved reports whether the value holds anything.
func (v Value) Resolved() bool { return v.Kind != KindNone }

// String renders the value as answer text.
func (v Value) String() string {
	if v.Raw != "" {
		return v.Raw
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(int64(v.Num), 10)
	case KindFloat:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		if v.HasYear {
			return v.Date.Format("January 2, 2006")
		}
		return v.Date.Format("January 2")
	case KindText:
		return v.Text
	case KindList:
		return "[" + strings.Join(v.List, ", ") + "]"
	}
	return ""
}

// Equal reports whether two typed values hold the same datum.
func (v Value) Equal(o Value) bool {
	switch {
	case v.Kind.Numeric() && o.Kind.Numeric():
		return v.Num == o.Num
	case v.Kind == KindDate && o.Kind == KindDate:
		return v.Date.Equal(o.Date)
	case v.Kind == o.Kind:
		return v.String() == o.String()
	}
	return false
}

var marks = strings.NewReplacer(",", "", "%", "", "£", "", "$", "")

// Clean types raw answer text. In order it tries a plain number once
// thousands, currency and percent marks are stripped, then a date, then a
// number in the first token (rounded to two decimals, so "35.456 yards"
// is 35.46). Anything else is text; empty input is KindNone.
func Clean(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}
	}
	if v, ok := number(s); ok {
		v.Raw = raw
		return v
	}
	if d, hasYear, ok := parseDate(s); ok {
		return Value{Kind: KindDate, Date: d, HasYear: hasYear, Raw: raw}
	}
	if v, ok := number(strings.Fields(s)[0]); ok {
		if v.Kind == KindFloat {
			v.Num = math.Round(v.Num*100) / 100
		}
		v.Raw = raw
		return v
	}
	return Text(raw)
}

func number(s string) (Value, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(marks.Replace(s)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Int(int64(f)), true
	}
	return Float(f), true
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	reYear  = regexp.MustCompile(`\b\d{4}\b`)
	reDay   = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?$`)
	reWords = regexp.MustCompile(`[A-Za-z]+|\d+(?:st|nd|rd|th)?`)
)

// parseDate accepts full dates in any common layout and, tolerating
// surrounding words, a month name with an optional day and year or a lone
// four-digit year. A day may come before or after the month. Missing parts
// default to January, the 1st and year 1.
func parseDate(s string) (time.Time, bool, bool) {
	if reYear.MatchString(s) {
		if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
			return t, true, true
		}
	}

	var month time.Month
	day, leadDay, year := 0, 0, 0
	for _, tok := range reWords.FindAllString(s, -1) {
		lower := strings.ToLower(tok)
		switch {
		case month == 0 && months[lower] != 0:
			month = months[lower]
		case len(tok) == 4 && reYear.MatchString(tok):
			year, _ = strconv.Atoi(tok)
		case reDay.MatchString(lower):
			d, _ := strconv.Atoi(reDay.FindStringSubmatch(lower)[1])
			if d < 1 || d > 31 {
				continue
			}
			if month == 0 && leadDay == 0 {
				leadDay = d
			} else if month != 0 && day == 0 {
				day = d
			}
		}
	}
	if day == 0 {
		day = max(leadDay, 1)
	}
	switch {
	case month == 0 && year == 0:
		return time.Time{}, false, false
	case month == 0:
		return time.Date(year, time.January, day, 0, 0, 0, 0, time.UTC), true, true
	case year == 0:
		return time.Date(1, month, day, 0, 0, 0, 0, time.UTC), false, true
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true, true
}

// ErrIncomparableOperands is wrapped by IncomparableError.
var ErrIncomparableOperands = errors.New("incomparable operands")

// IncomparableError reports two values that cannot be ordered.
type IncomparableError struct {
	Left, Right Kind
	Reason      string
}

func (e *IncomparableError) Error() string {
	return fmt.Sprintf("cannot compare %s with %s: %s", e.Left, e.Right, e.Reason)
}

func (e *IncomparableError) Unwrap() error { return ErrIncomparableOperands }

// Comparable checks that two values have recognized types that can be
// ordered: number against number, or date against date where both or
// neither carry a year.
func Comparable(a, b Value) error {
	switch {
	case a.Kind.Numeric() && b.Kind.Numeric():
		return nil
	case a.Kind == KindDate && b.Kind == KindDate:
		if a.HasYear != b.HasYear {
			return &IncomparableError{Left: a.Kind, Right: b.Kind, Reason: "only one date has a year"}
		}
		return nil
	}
	return &IncomparableError{Left: a.Kind, Right: b.Kind, Reason: "unordered types"}
}

// Compare orders two comparable values, returning -1, 0 or 1.
func Compare(a, b Value) (int, error) {
	if err := Comparable(a, b); err != nil {
		return 0, err
	}
	if a.Kind == KindDate {
		return a.Date.Compare(b.Date), nil
	}
	switch {
	case a.Num < b.Num:
		return -1, nil
	case a.Num > b.Num:
		return 1, nil
	}
	return 0, nil
}
