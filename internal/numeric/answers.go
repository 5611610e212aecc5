package numeric

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
)

// Answers is a read-only lookup of question id to numeric gold answer.
type Answers struct {
	values map[string]float64
}

// NewAnswers copies values into a lookup table.
func NewAnswers(values map[string]float64) *Answers {
	return &Answers{values: maps.Clone(values)}
}

// AnswersFromText keeps the entries of texts whose answer parses as a
// number.
func AnswersFromText(t *Table, texts map[string]string) *Answers {
	values := make(map[string]float64)
	for id, text := range texts {
		if v, err := t.Parse(text); err == nil {
			values[id] = v
		}
	}
	return &Answers{values: values}
}

// ReadAnswers decodes a JSON object of id to number.
func ReadAnswers(r io.Reader) (*Answers, error) {
	values := make(map[string]float64)
	if err := json.NewDecoder(r).Decode(&values); err != nil {
		return nil, fmt.Errorf("decoding numeric answers: %w", err)
	}
	return &Answers{values: values}, nil
}

// LoadAnswers reads a JSON numeric-answer file.
func LoadAnswers(path string) (*Answers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening numeric answers: %w", err)
	}
	defer f.Close()
	return ReadAnswers(f)
}

// Lookup returns the answer for id. A nil table has no answers.
func (a *Answers) Lookup(id string) (float64, bool) {
	if a == nil {
		return 0, false
	}
	v, ok := a.values[id]
	return v, ok
}

// Len returns the number of answers.
func (a *Answers) Len() int {
	if a == nil {
		return 0
	}
	return len(a.values)
}

// All returns a copy of every answer.
func (a *Answers) All() map[string]float64 {
	if a == nil {
		return nil
	}
	return maps.Clone(a.values)
}
