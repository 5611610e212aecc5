package dataio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/leapstack-labs/leapqdmr/internal/answer"
	"github.com/leapstack-labs/leapqdmr/internal/evaluator"
)

const maxLineBytes = 16 << 20

// AnswerRequest is one candidate to answer, with the external
// predictions gathered for it.
type AnswerRequest struct {
	ID string `json:"qid"`
	// Question is the original question.
	Question string `json:"question"`
	// GeneratedQuestion is the paraphrase produced for the candidate.
	GeneratedQuestion string `json:"generated_question,omitempty"`
	// Decomposition is the original program, one clause per step.
	Decomposition []string `json:"decomposition"`
	// Transformed is the candidate program, one clause per step.
	Transformed    []string         `json:"transformed"`
	Transformation string           `json:"transformation"`
	OrigAnswers    []string         `json:"orig_answer_texts,omitempty"`
	OrigNumbers    []float64        `json:"orig_numbers,omitempty"`
	StepAnswers    evaluator.Leaves `json:"step_answers,omitempty"`
}

// AnswerRecord is the outcome for one request.
type AnswerRecord struct {
	ID                string         `json:"qid"`
	Transformation    string         `json:"transformation"`
	GeneratedQuestion string         `json:"generated_question,omitempty"`
	Transformed       []string       `json:"transformed"`
	Answer            *answer.Answer `json:"transformed_answer,omitempty"`
	Constraint        string         `json:"answer_constraint,omitempty"`
	Source            string         `json:"answer_source,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// JSONLReader decodes one JSON value per line, skipping blank lines.
type JSONLReader[T any] struct {
	sc   *bufio.Scanner
	line int
}

// NewJSONLReader wraps r.
func NewJSONLReader[T any](r io.Reader) *JSONLReader[T] {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &JSONLReader[T]{sc: sc}
}

// Next returns the next value, or io.EOF. A line that does not decode
// returns an InputError and the reader moves on.
func (jr *JSONLReader[T]) Next() (T, error) {
	var v T
	for jr.sc.Scan() {
		jr.line++
		data := bytes.TrimSpace(jr.sc.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return v, &InputError{Line: jr.line, Message: err.Error()}
		}
		return v, nil
	}
	if err := jr.sc.Err(); err != nil {
		return v, fmt.Errorf("reading line %d: %w", jr.line+1, err)
	}
	return v, io.EOF
}

// Line returns the line of the last value returned.
func (jr *JSONLReader[T]) Line() int { return jr.line }

// ReadAnswerRequests reads every request, failing on the first bad line.
func ReadAnswerRequests(r io.Reader) ([]AnswerRequest, error) {
	jr := NewJSONLReader[AnswerRequest](r)
	var out []AnswerRequest
	for {
		req, err := jr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
}

// JSONLWriter encodes one value per line.
type JSONLWriter[T any] struct {
	bw  *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter wraps w. Flush must be called when done.
func NewJSONLWriter[T any](w io.Writer) *JSONLWriter[T] {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLWriter[T]{bw: bw, enc: enc}
}

// Write encodes v followed by a newline.
func (jw *JSONLWriter[T]) Write(v T) error {
	return jw.enc.Encode(v)
}

// Flush writes any buffered data.
func (jw *JSONLWriter[T]) Flush() error {
	return jw.bw.Flush()
}
