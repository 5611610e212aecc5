package dataio

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/leapstack-labs/leapqdmr/internal/transform"
)

// CandidateHeader is the column order of candidate CSVs.
var CandidateHeader = []string{"id", "question", "decomposition", "transformation", "type", "transformed_question"}

// CandidateRow is one written candidate.
type CandidateRow struct {
	ID                  string
	Question            string
	Decomposition       string
	Transformation      string
	Type                string
	TransformedQuestion string
}

// RowFromCandidate converts a candidate. The original decomposition is
// written as read.
func RowFromCandidate(c transform.Candidate, decomposition string) CandidateRow {
	return CandidateRow{
		ID:                  c.ID,
		Question:            c.Question,
		Decomposition:       decomposition,
		Transformation:      c.Program.String(),
		Type:                string(c.Descriptor.Family),
		TransformedQuestion: c.Paraphrase,
	}
}

// CandidateWriter writes candidate rows as CSV.
type CandidateWriter struct {
	w    *csv.Writer
	rows int
}

// NewCandidateWriter writes the header.
func NewCandidateWriter(w io.Writer) (*CandidateWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CandidateHeader); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return &CandidateWriter{w: cw}, nil
}

// Write adds one row.
func (cw *CandidateWriter) Write(row CandidateRow) error {
	cw.rows++
	return cw.w.Write([]string{
		row.ID, row.Question, row.Decomposition, row.Transformation, row.Type, row.TransformedQuestion,
	})
}

// Rows returns the number of rows written, excluding the header.
func (cw *CandidateWriter) Rows() int { return cw.rows }

// Flush writes buffered rows and reports any write error.
func (cw *CandidateWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}

// ReadCandidates reads a candidate CSV written by CandidateWriter.
func ReadCandidates(r io.Reader) ([]CandidateRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CandidateHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading candidates: %w", err)
	}
	if len(rows) == 0 {
		return nil, &InputError{Line: 1, Message: "missing header"}
	}
	out := make([]CandidateRow, 0, len(rows)-1)
	for _, r := range rows[1:] {
		out = append(out, CandidateRow{
			ID: r[0], Question: r[1], Decomposition: r[2],
			Transformation: r[3], Type: r[4], TransformedQuestion: r[5],
		})
	}
	return out, nil
}
