package qdmr

import "fmt"

// ParseError reports a clause that could not be classified.
type ParseError struct {
	// Index is the 1-based step number, or 0 when the clause was
	// classified outside a program.
	Index   int
	Clause  string
	Message string
}

func (e *ParseError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("parse error at step %d: %s: %q", e.Index, e.Message, e.Clause)
	}
	return fmt.Sprintf("parse error: %s: %q", e.Message, e.Clause)
}
