package qdmr

import (
	"errors"
	"regexp"
	"strings"
)

const (
	clauseSep    = ";"
	returnMarker = "return"
)

var thousandsSep = regexp.MustCompile(`(\d),(\d{3})\b`)

// Split breaks a raw decomposition into normalized clauses: thousands
// separators are removed, standalone commas become their own token, the
// leading "return" marker is dropped and whitespace is collapsed.
func Split(text string) []string {
	for {
		next := thousandsSep.ReplaceAllString(text, "$1$2")
		if next == text {
			break
		}
		text = next
	}
	text = strings.ReplaceAll(text, ",", " , ")

	parts := strings.Split(text, clauseSep)
	clauses := make([]string, 0, len(parts))
	for _, part := range parts {
		toks := strings.Fields(part)
		if len(toks) > 0 && strings.EqualFold(toks[0], returnMarker) {
			toks = toks[1:]
		}
		clauses = append(clauses, strings.Join(toks, " "))
	}
	for len(clauses) > 0 && clauses[len(clauses)-1] == "" {
		clauses = clauses[:len(clauses)-1]
	}
	return clauses
}

// Parse splits and classifies a raw decomposition.
func Parse(text string) (*Program, error) {
	clauses := Split(text)
	if len(clauses) == 0 {
		return nil, &ParseError{Clause: text, Message: "empty decomposition"}
	}
	return ParseClauses(clauses)
}

// ParseClauses classifies already split clauses.
func ParseClauses(clauses []string) (*Program, error) {
	steps := make([]*Step, len(clauses))
	for i, c := range clauses {
		s, err := Classify(c)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Index = i + 1
			}
			return nil, err
		}
		steps[i] = s
	}
	return &Program{steps: steps}, nil
}

// MustParse is Parse for fixtures; it panics on error.
func MustParse(text string) *Program {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}
