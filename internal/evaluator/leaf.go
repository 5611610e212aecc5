package evaluator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Leaf is the prediction an external single-step QA component made for
// one step: absent, a single span, or a list of spans.
type Leaf struct {
	Spans []string
	List  bool
}

// Scalar returns a single-span leaf. Blank text is absent.
func Scalar(s string) Leaf {
	if strings.TrimSpace(s) == "" {
		return Leaf{}
	}
	return Leaf{Spans: []string{s}}
}

// Multi returns a multi-span leaf.
func Multi(spans ...string) Leaf {
	return Leaf{Spans: spans, List: true}
}

// Present reports whether a prediction was made.
func (l Leaf) Present() bool { return len(l.Spans) > 0 }

// Text returns the single span, or "" for absent and list leaves.
func (l Leaf) Text() string {
	if l.List || len(l.Spans) == 0 {
		return ""
	}
	return l.Spans[0]
}

// Value types the prediction.
func (l Leaf) Value() Value {
	switch {
	case !l.Present():
		return Value{}
	case l.List:
		return List(l.Spans...)
	}
	return Clean(l.Spans[0])
}

// UnmarshalJSON accepts null, a string or an array of strings.
func (l *Leaf) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = Leaf{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var spans []string
		if err := json.Unmarshal(data, &spans); err != nil {
			return fmt.Errorf("leaf prediction list: %w", err)
		}
		*l = Multi(spans...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("leaf prediction: %w", err)
	}
	*l = Scalar(s)
	return nil
}

// MarshalJSON writes the same three shapes.
func (l Leaf) MarshalJSON() ([]byte, error) {
	switch {
	case !l.Present():
		return []byte("null"), nil
	case l.List:
		return json.Marshal(l.Spans)
	}
	return json.Marshal(l.Spans[0])
}

// Leaves holds one prediction per step, in step order.
type Leaves []Leaf

// At returns the prediction for 1-based step i; missing entries are absent.
func (ls Leaves) At(i int) Leaf {
	if i < 1 || i > len(ls) {
		return Leaf{}
	}
	return ls[i-1]
}
