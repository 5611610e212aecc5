package qdmr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "strips return markers",
			input: "return objects ;return #1 that are green",
			want:  []string{"objects", "#1 that are green"},
		},
		{
			name:  "thousands separators",
			input: "return games with 1,234,567 fans ;return number of #1",
			want:  []string{"games with 1234567 fans", "number of #1"},
		},
		{
			name:  "standalone commas",
			input: "return a ;return b ;return #1,#2",
			want:  []string{"a", "b", "#1 , #2"},
		},
		{
			name:  "collapses whitespace and trailing separator",
			input: "return   yards of   touchdowns ; ",
			want:  []string{"yards of touchdowns"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.input))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		clause string
		op     Operator
		args   []string
	}{
		{"select", "objects", OpSelect, []string{"objects"}},
		{"select ignores hash space", "touchdowns of # 3 jersey", OpSelect, []string{"touchdowns of # 3 jersey"}},
		{"project", "population of #1", OpProject, []string{"population of #REF", "#1"}},
		{"filter", "#1 that are green", OpFilter, []string{"#1", "that are green"}},
		{"aggregate count", "number of #2", OpAggregate, []string{"count", "#2"}},
		{"aggregate the", "the highest of #3", OpAggregate, []string{"max", "#3"}},
		{"group", "number of #3 for each #1", OpGroup, []string{"count", "#3", "#1"}},
		{"superlative", "#1 where #2 is highest", OpSuperlative, []string{"max", "#1", "#2"}},
		{"superlative the", "#1 where #2 is the lowest", OpSuperlative, []string{"min", "#1", "#2"}},
		{"comparative", "#1 where #2 is more than 60", OpComparative, []string{"#1", "#2", "is more than 60"}},
		{"union", "#5 , #10", OpUnion, []string{"#5", "#10"}},
		{"union and", "#1 and #2", OpUnion, []string{"#1", "#2"}},
		{"intersection", "players in both #1 and #2", OpIntersection, []string{"players", "#1", "#2"}},
		{"discard", "#1 besides #2", OpDiscard, []string{"#1", "#2"}},
		{"sort", "#1 sorted by #2", OpSort, []string{"#1", "#2"}},
		{"boolean and", "if both #4 and #5 are true", OpBoolean, []string{"logical_and", "true", "#4", "#5"}},
		{"boolean or", "if either #1 or #2 are false", OpBoolean, []string{"logical_or", "false", "#1", "#2"}},
		{"boolean exist", "if any #2 is red", OpBoolean, []string{"if_exist", "#2", "is red"}},
		{"boolean filter", "if #3 is lower than two", OpBoolean, []string{"#3", "is lower than two"}},
		{"boolean project", "if the color of #1 is red", OpBoolean, []string{"#1", "if the color of #REF is red"}},
		{"arithmetic", "the difference of #3 and #4", OpArithmetic, []string{"difference", "#3", "#4"}},
		{"arithmetic constant", "difference of 100 and #1", OpArithmetic, []string{"difference", "100", "#1"}},
		{"comparison", "which is highest of #4 , #5", OpComparison, []string{"max", "#4", "#5"}},
		{"comparison lower", "which is lowest of #4 , #5", OpComparison, []string{"min", "#4", "#5"}},
		{"comparison true", "which is true of #2 , #3", OpComparison, []string{"true", "#2", "#3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Classify(tt.clause)
			require.NoError(t, err)
			assert.Equal(t, tt.op, s.Op)
			assert.Equal(t, tt.args, s.Args)
			assert.Equal(t, tt.clause, s.Text)
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		name   string
		clause string
	}{
		{"empty", "   "},
		{"bare reference", "#1"},
		{"reference to zero", "number of #0"},
		{"logical without are", "if both #1 and #2 true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.clause)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestParse_IndexInError(t *testing.T) {
	_, err := Parse("return objects ;return #1 ;return number of #1")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Index)
	assert.Contains(t, err.Error(), "step 2")
}

func TestRender_MatchesClassify(t *testing.T) {
	tests := []struct {
		op   Operator
		args []string
	}{
		{OpSelect, []string{"objects"}},
		{OpProject, []string{"size of #REF", "#1"}},
		{OpFilter, []string{"#1", "that are green"}},
		{OpAggregate, []string{"count", "#2"}},
		{OpAggregate, []string{"avg", "#2"}},
		{OpGroup, []string{"sum", "#3", "#1"}},
		{OpSuperlative, []string{"min", "#1", "#2"}},
		{OpComparative, []string{"#1", "#2", "is at least 5"}},
		{OpUnion, []string{"#1", "#2", "#3"}},
		{OpIntersection, []string{"players", "#1", "#2"}},
		{OpDiscard, []string{"#1", "#2"}},
		{OpSort, []string{"#1", "#2"}},
		{OpBoolean, []string{"logical_or", "true", "#1", "#2"}},
		{OpBoolean, []string{"if_exist", "#2", "is red"}},
		{OpBoolean, []string{"#3", "is the same as #4"}},
		{OpArithmetic, []string{"multiplication", "#3", "#4"}},
		{OpComparison, []string{"min", "#3", "#4"}},
		{OpComparison, []string{"false", "#3", "#4"}},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			s := NewStep(tt.op, tt.args...)
			back, err := Classify(s.Text)
			require.NoError(t, err)
			assert.Equal(t, tt.op, back.Op, s.Text)
			assert.Equal(t, tt.args, back.Args, s.Text)
		})
	}
}

func TestProgram_RoundTrip(t *testing.T) {
	inputs := []string{
		"return objects ;return #1 that are green ;return #1 that are cylinders ;return number of #2 ;return number of #3 ;return which is lowest of #4 , #5",
		"return touchdowns ;return yards of #1 ;return #1 where #2 is more than 30 ;return number of #3",
		"return players ;return #1 that scored ;return #1 besides #2 ;return if any #3 is a kicker",
		"return the Irish population ;return the Danish population ;return #1 , #2 ;return the difference of #1 and #2",
	}

	for _, in := range inputs {
		p, err := Parse(in)
		require.NoError(t, err)

		again, err := Parse(p.String())
		require.NoError(t, err)
		assert.True(t, p.Equal(again), cmp.Diff(p.Texts(), again.Texts()))
		assert.Equal(t, p.String(), again.String())
	}
}

func TestProgram_StructuralSharing(t *testing.T) {
	p := MustParse("return objects ;return #1 that are green ;return number of #2")
	s := NewStep(OpAggregate, AggMax, "#2")

	q := p.Replace(3, s)
	assert.Same(t, p.Step(1), q.Step(1))
	assert.Same(t, p.Step(2), q.Step(2))
	assert.Equal(t, "number of #2", p.Final().Text)
	assert.Equal(t, "highest of #2", q.Final().Text)

	r := q.Append(NewStep(OpBoolean, "#3", "is higher than 5"))
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, "if #3 is higher than 5", r.Final().Text)
}

func TestProgram_TextMarshal(t *testing.T) {
	var p Program
	require.NoError(t, p.UnmarshalText([]byte("return a ;return number of #1")))
	out, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "return a ;return number of #1", string(out))
}
