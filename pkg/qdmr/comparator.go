package qdmr

import (
	"slices"
	"strconv"
	"strings"
)

// Comparator is the relation a comparative step condition expresses.
type Comparator string

// Comparators recognized in comparative conditions.
const (
	CompBetween Comparator = "BETWEEN"
	CompGT      Comparator = ">"
	CompGTE     Comparator = ">="
	CompLT      Comparator = "<"
	CompLTE     Comparator = "<="
	CompNE      Comparator = "!="
	CompStart   Comparator = "start"
	CompEnd     Comparator = "end"
	CompLike    Comparator = "LIKE"
	CompEQ      Comparator = "="
)

type comparatorTriggers struct {
	comp     Comparator
	triggers []string
}

// comparatorLexicon is matched in order; the first trigger found wins.
var comparatorLexicon = []comparatorTriggers{
	{CompBetween, []string{"between"}},
	{CompGT, []string{"more than", "above", "larger than", "larger",
		"older than", "older", "higher than", "higher",
		"greater than", "greater", "bigger than", "bigger",
		"after", "over"}},
	{CompGTE, []string{"at least"}},
	{CompLT, []string{"less than", "under", "lower than", "lower",
		"younger than", "younger", "before", "below",
		"smaller than", "smaller"}},
	{CompLTE, []string{"at most"}},
	{CompNE, []string{"is not"}},
	{CompStart, []string{"start with", "starts with", "begin"}},
	{CompEnd, []string{"end with", "ends with"}},
	{CompLike, []string{"the letter", "the string", "the word", "the phrase",
		"contain", "include", "has", "have",
		"contains", "substring", "includes"}},
	{CompEQ, []string{"is equal to", "equal to", "same as", "is", "are", "was"}},
}

// trailingComparators rewrite an inclusive bound written after the value,
// as in "1990 or later".
var trailingComparators = []comparatorTriggers{
	{CompGTE, []string{"or later", "or more", "or after"}},
	{CompLTE, []string{"or earlier", "or less", "or before"}},
}

var smallNumbers = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
}

// Phrase returns the canonical English phrase for a comparator.
func (c Comparator) Phrase() string {
	for _, ct := range comparatorLexicon {
		if ct.comp == c {
			return ct.triggers[0]
		}
	}
	return string(c)
}

// Ordered reports whether the comparator is a numeric ordering.
func (c Comparator) Ordered() bool {
	switch c {
	case CompGT, CompGTE, CompLT, CompLTE:
		return true
	}
	return false
}

// Alternatives returns the comparators a condition using c with the given
// value may be swapped to, excluding c itself. The result is empty when
// the condition cannot be varied.
func (c Comparator) Alternatives(value string) []Comparator {
	var set []Comparator
	_, numErr := strconv.ParseFloat(value, 64)
	switch {
	case c.Ordered() || ((c == CompEQ || c == CompNE) && numErr == nil):
		set = []Comparator{CompEQ, CompNE, CompGT, CompGTE, CompLT, CompLTE}
	case c == CompEQ || c == CompNE:
		set = []Comparator{CompEQ, CompNE}
	case c == CompStart || c == CompEnd:
		set = []Comparator{CompStart, CompEnd}
	}
	return slices.DeleteFunc(set, func(o Comparator) bool { return o == c })
}

// ExtractComparator finds the comparator and compared value in a
// comparative condition such as "is more than 60". ok is false when no
// comparator phrase is present.
func ExtractComparator(condition string) (comp Comparator, value string, ok bool) {
	cond := strings.Join(strings.Fields(strings.ReplaceAll(condition, ",", "")), " ")
	padded := " " + asciiLower(cond) + " "

	trigger := ""
	for _, ct := range comparatorLexicon {
		for _, t := range ct.triggers {
			if strings.Contains(padded, " "+t+" ") {
				comp, trigger = ct.comp, t
				break
			}
		}
		if trigger != "" {
			break
		}
	}
	if trigger == "" {
		return CompEQ, "", false
	}

	at := strings.Index(padded, " "+trigger+" ")
	phrase := strings.TrimSpace(cond[min(at+len(trigger), len(cond)):])
	if comp == CompBetween {
		return comp, strings.ToUpper(phrase), true
	}
	for _, ct := range trailingComparators {
		for _, t := range ct.triggers {
			if i := strings.Index(padded, " "+t+" "); i >= 0 {
				comp = ct.comp
				phrase = strings.TrimSpace(cond[:i])
				break
			}
		}
	}
	for _, tok := range strings.Fields(phrase) {
		if isDigits(tok) {
			return comp, tok, true
		}
		if n, ok := smallNumbers[strings.ToLower(tok)]; ok {
			return comp, n, true
		}
	}
	return comp, phrase, true
}

// ComparatorCondition renders a condition for comp and value, keeping the
// copula of the condition it replaces.
func ComparatorCondition(comp Comparator, value, replaced string) string {
	phrase := comp.Phrase()
	if hasCopula(replaced) && !hasCopula(phrase) {
		first, _, _ := strings.Cut(strings.TrimSpace(replaced), " ")
		phrase = first + " " + phrase
	}
	return phrase + " " + value
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
