package answer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapqdmr/internal/evaluator"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// MaxSpanWords is the longest answer span accepted, in words.
const MaxSpanWords = 8

// Answer is a single span or a list of spans.
type Answer struct {
	Spans []string
	List  bool
}

// ScalarAnswer returns a single-span answer.
func ScalarAnswer(s string) Answer { return Answer{Spans: []string{s}} }

// ListAnswer returns a multi-span answer.
func ListAnswer(spans ...string) Answer { return Answer{Spans: spans, List: true} }

// FromLeaf converts a leaf prediction verbatim.
func FromLeaf(l evaluator.Leaf) Answer {
	if l.List {
		return ListAnswer(l.Spans...)
	}
	return ScalarAnswer(l.Text())
}

// FromValue converts an evaluated value.
func FromValue(v evaluator.Value) Answer {
	if v.Kind == evaluator.KindList {
		return ListAnswer(v.List...)
	}
	return ScalarAnswer(v.String())
}

// Text returns the scalar span, or the spans joined with "; ".
func (a Answer) Text() string {
	return strings.Join(a.Spans, "; ")
}

// MarshalJSON writes a string for a scalar and an array for a list.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.List {
		return json.Marshal(a.Spans)
	}
	return json.Marshal(a.Text())
}

// ErrValidationFailure is wrapped by ValidationError.
var ErrValidationFailure = errors.New("answer failed validation")

// ValidationError reports why an answer was rejected.
type ValidationError struct {
	Answer Answer
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid answer %q: %s", e.Answer.Text(), e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailure }

// Validate gates a derived answer against the final step of its program.
// A list left with a single non-blank span comes back as a scalar.
func Validate(a Answer, final *qdmr.Step) (Answer, error) {
	reject := func(reason string) (Answer, error) {
		return Answer{}, &ValidationError{Answer: a, Reason: reason}
	}
	if len(a.Spans) == 0 {
		return reject("empty")
	}

	var kept []string
	for _, span := range a.Spans {
		if len(strings.Fields(span)) > MaxSpanWords {
			return reject(fmt.Sprintf("span longer than %d words", MaxSpanWords))
		}
		if strings.TrimSpace(span) != "" {
			kept = append(kept, span)
		}
	}
	switch {
	case len(kept) == 0:
		return reject("blank")
	case a.List && len(kept) == 1:
		a = ScalarAnswer(kept[0])
	case a.List:
		a = ListAnswer(kept...)
	}

	if final != nil && strings.HasPrefix(strings.ToLower(final.Text), "if") {
		if a.List || (a.Spans[0] != "yes" && a.Spans[0] != "no") {
			return reject("boolean step needs yes or no")
		}
	}
	return a, nil
}
