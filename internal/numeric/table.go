// Package numeric converts number words and numeric answer text into
// numbers.
//
// The numeral table is built once by NewTable and never modified, so a
// single *Table can be shared by every worker.
package numeric

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type numeral struct {
	scale     float64
	increment float64
}

// Table maps English number words to values.
type Table struct {
	words map[string]numeral
}

var (
	units = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
		"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen",
		"sixteen", "seventeen", "eighteen", "nineteen",
	}
	tens   = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
	scales = []string{"hundred", "thousand", "million", "billion", "trillion"}
)

// NewTable builds the numeral table.
func NewTable() *Table {
	words := make(map[string]numeral, len(units)+len(tens)+len(scales)+1)
	words["and"] = numeral{scale: 1}
	for i, w := range units {
		words[w] = numeral{scale: 1, increment: float64(i)}
	}
	for i, w := range tens {
		if w != "" {
			words[w] = numeral{scale: 1, increment: float64(i * 10)}
		}
	}
	for i, w := range scales {
		exp := i * 3
		if exp == 0 {
			exp = 2
		}
		words[w] = numeral{scale: math.Pow10(exp)}
	}
	return &Table{words: words}
}

// Parse converts digits ("1,250", "12.5%") or number words ("two hundred
// and five", "twenty-one") to a value.
func (t *Table) Parse(text string) (float64, error) {
	clean := strings.TrimSpace(strings.NewReplacer(",", "", "%", "").Replace(text))
	if clean == "" {
		return 0, fmt.Errorf("empty number")
	}
	if v, err := strconv.ParseFloat(clean, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("not a finite number: %q", text)
		}
		return v, nil
	}

	current, result := 0.0, 0.0
	seen := false
	for _, word := range strings.Fields(strings.ReplaceAll(strings.ToLower(clean), "-", " ")) {
		n, ok := t.words[word]
		if !ok {
			return 0, fmt.Errorf("illegal number word %q in %q", word, text)
		}
		if word != "and" {
			seen = true
		}
		current = current*n.scale + n.increment
		if n.scale > 100 {
			result += current
			current = 0
		}
	}
	if !seen {
		return 0, fmt.Errorf("no number word in %q", text)
	}
	return result + current, nil
}

// IsNumber reports whether text parses as a number.
func (t *Table) IsNumber(text string) bool {
	_, err := t.Parse(text)
	return err == nil
}

// Extract reads a number from answer text, tolerating currency marks and
// a trailing unit ("$1,200", "35 yards").
func (t *Table) Extract(text string) (float64, bool) {
	clean := strings.Trim(strings.TrimSpace(text), "$£€.")
	if v, err := t.Parse(clean); err == nil {
		return v, true
	}
	fields := strings.Fields(clean)
	if len(fields) > 1 {
		if v, err := t.Parse(strings.Trim(fields[0], "$£€")); err == nil {
			return v, true
		}
	}
	return 0, false
}
