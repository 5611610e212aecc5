// Package dataio reads and writes the pipeline's file formats: Break
// decomposition CSVs, candidate CSVs and JSON-lines answer files.
package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Break CSV columns.
const (
	ColQuestionID    = "question_id"
	ColQuestionText  = "question_text"
	ColDecomposition = "decomposition"
	ColOperators     = "operators"
	ColSplit         = "split"
)

// BreakRecord is one row of a Break CSV.
type BreakRecord struct {
	ID            string
	Question      string
	Decomposition string
	// Line is the 1-based line of the record, counting the header.
	Line int
}

// InputError reports a malformed input row.
type InputError struct {
	Line    int
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// BreakReader streams records from a Break CSV. Columns are located by
// header name, so extra columns (operators, split) are ignored.
type BreakReader struct {
	r    *csv.Reader
	cols [3]int
}

// NewBreakReader reads the header and checks the required columns.
func NewBreakReader(r io.Reader) (*BreakReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &InputError{Line: 1, Message: "missing header"}
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	br := &BreakReader{r: cr, cols: [3]int{-1, -1, -1}}
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case ColQuestionID:
			br.cols[0] = i
		case ColQuestionText:
			br.cols[1] = i
		case ColDecomposition:
			br.cols[2] = i
		}
	}
	for i, name := range []string{ColQuestionID, ColQuestionText, ColDecomposition} {
		if br.cols[i] < 0 {
			return nil, &InputError{Line: 1, Message: "missing column " + name}
		}
	}
	return br, nil
}

// Next returns the next record, or io.EOF. A short row returns an
// InputError and the reader stays usable.
func (br *BreakReader) Next() (BreakRecord, error) {
	row, err := br.r.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return BreakRecord{}, &InputError{Line: pe.Line, Message: pe.Err.Error()}
		}
		return BreakRecord{}, err
	}
	line, _ := br.r.FieldPos(0)
	for _, c := range br.cols {
		if c >= len(row) {
			return BreakRecord{}, &InputError{Line: line, Message: fmt.Sprintf("expected at least %d fields, got %d", c+1, len(row))}
		}
	}
	return BreakRecord{
		ID:            row[br.cols[0]],
		Question:      row[br.cols[1]],
		Decomposition: row[br.cols[2]],
		Line:          line,
	}, nil
}

// ReadBreak reads every record. The first malformed row is an error.
func ReadBreak(r io.Reader) ([]BreakRecord, error) {
	br, err := NewBreakReader(r)
	if err != nil {
		return nil, err
	}
	var out []BreakRecord
	for {
		rec, err := br.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// BreakWriter writes Break-format rows, used for the generated questions
// that augment question generation training data.
type BreakWriter struct {
	w *csv.Writer
}

// NewBreakWriter writes the header.
func NewBreakWriter(w io.Writer) (*BreakWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColQuestionID, ColQuestionText, ColDecomposition, ColOperators, ColSplit}); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return &BreakWriter{w: cw}, nil
}

// Write adds one record. The split is taken from the id, e.g. "train"
// for "DROP_train_history_1".
func (bw *BreakWriter) Write(rec BreakRecord) error {
	return bw.w.Write([]string{rec.ID, rec.Question, rec.Decomposition, "", SplitOf(rec.ID)})
}

// Flush writes buffered rows and reports any write error.
func (bw *BreakWriter) Flush() error {
	bw.w.Flush()
	return bw.w.Error()
}

// SplitOf returns the second underscore-separated field of a question id.
func SplitOf(id string) string {
	parts := strings.SplitN(id, "_", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
