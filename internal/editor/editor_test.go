package editor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

var programs = []string{
	"return objects ;return #1 that are green ;return #1 that are cylinders ;return number of #2 ;return number of #3 ;return which is lowest of #4 , #5",
	"return touchdowns ;return yards of #1 ;return #1 where #2 is more than 30 ;return number of #3",
	"return players ;return #1 that scored ;return #1 besides #2 ;return if any #3 is a kicker",
	"return the Irish population ;return the Danish population ;return the difference of #1 and #2",
	"return cities ;return population of #1 ;return #1 where #2 is highest ;return name of #3",
}

func TestInsertRemoveInverse(t *testing.T) {
	extra := qdmr.NewStep(qdmr.OpSelect, "stadiums")
	for _, text := range programs {
		p := qdmr.MustParse(text)
		for i := 1; i <= p.Len()+1; i++ {
			inserted, err := Insert(p, i, extra)
			require.NoError(t, err)
			require.Equal(t, p.Len()+1, inserted.Len())
			require.NoError(t, CheckReferences(inserted), inserted.String())

			back, err := Remove(inserted, i)
			require.NoError(t, err)
			assert.True(t, p.Equal(back), "insert/remove at %d\n%s", i, cmp.Diff(p.Texts(), back.Texts()))
		}
	}
}

func TestInsert_ShiftsReferences(t *testing.T) {
	p := qdmr.MustParse("return players ;return #1 that scored ;return number of #2")
	got, err := Insert(p, 2, qdmr.NewStep(qdmr.OpFilter, "#1", "that are kickers"))
	require.NoError(t, err)
	assert.Equal(t, []string{"players", "#1 that are kickers", "#1 that scored", "number of #3"}, got.Texts())
	assert.Same(t, p.Step(1), got.Step(1))
	assert.Same(t, p.Step(2), got.Step(3), "steps without shifted references are shared")
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name    string
		program string
		remove  int
		want    []string
	}{
		{
			name:    "filter splices to its input",
			program: "return players ;return #1 that scored ;return #2 that are kickers ;return number of #3",
			remove:  2,
			want:    []string{"players", "#1 that are kickers", "number of #2"},
		},
		{
			name:    "superlative splices to its set argument",
			program: "return cities ;return population of #1 ;return #1 where #2 is highest ;return name of #3",
			remove:  3,
			want:    []string{"cities", "population of #1", "name of #1"},
		},
		{
			name:    "other operators redirect to the previous step",
			program: "return touchdowns ;return yards of #1 ;return number of #2",
			remove:  2,
			want:    []string{"touchdowns", "number of #1"},
		},
		{
			name:    "final step",
			program: "return touchdowns ;return yards of #1 ;return number of #2",
			remove:  3,
			want:    []string{"touchdowns", "yards of #1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := qdmr.MustParse(tt.program)
			got, err := Remove(p, tt.remove)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Texts())
			assert.NoError(t, CheckReferences(got))
			assert.Equal(t, tt.program, p.String(), "input must not change")
		})
	}
}

func TestRemove_FirstStepWithDependents(t *testing.T) {
	p := qdmr.MustParse("return touchdowns ;return number of #1")
	_, err := Remove(p, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructuralInvalidity)
}

func TestRemove_OutOfRange(t *testing.T) {
	p := qdmr.MustParse("return touchdowns")
	_, err := Remove(p, 2)
	assert.Error(t, err)
	_, err = Insert(p, 3, qdmr.NewStep(qdmr.OpSelect, "x"))
	assert.Error(t, err)
}

func TestPruneUnused(t *testing.T) {
	tests := []struct {
		name    string
		program string
		want    []string
	}{
		{
			name:    "drops unused projection",
			program: "return US State ;return total population of #1 ;return #1 that the Missouri river bisects",
			want:    []string{"US State", "#1 that the Missouri river bisects"},
		},
		{
			name:    "drops several and renumbers",
			program: "return players ;return teams ;return #2 that won ;return #1 that scored ;return number of #4",
			want:    []string{"players", "#1 that scored", "number of #2"},
		},
		{
			name:    "valid program unchanged",
			program: "return touchdowns ;return yards of #1 ;return #1 where #2 is more than 30 ;return number of #3",
			want:    []string{"touchdowns", "yards of #1", "#1 where #2 is more than 30", "number of #3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := qdmr.MustParse(tt.program)
			got, err := PruneUnused(p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Texts())
			assert.NoError(t, Validate(got))
			assert.Equal(t, p.Final().Op, got.Final().Op)
			assert.Equal(t, p.Final().Args[0:1], got.Final().Args[0:1])
		})
	}
}

func TestRemoveAndPrune_ReferenceIntegrity(t *testing.T) {
	for _, text := range programs {
		p := qdmr.MustParse(text)
		for i := 2; i <= p.Len(); i++ {
			got, err := RemoveAndPrune(p, i)
			if err != nil {
				continue
			}
			assert.NoError(t, CheckReferences(got), "%s minus %d", text, i)
			assert.NoError(t, Validate(got), "%s minus %d", text, i)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		program string
		wantErr bool
	}{
		{"valid", programs[0], false},
		{"forward reference", "return number of #2 ;return objects", true},
		{"dangling reference", "return objects ;return number of #5", true},
		{"dead step", "return players ;return teams ;return number of #1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(qdmr.MustParse(tt.program))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrStructuralInvalidity)
				var se *StructuralError
				assert.ErrorAs(t, err, &se)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckReferences(t *testing.T) {
	tests := []struct {
		name     string
		program  string
		wantStep int
		wantRef  int
	}{
		{"backward only", "return objects ;return #1 that are green ;return number of #2", 0, 0},
		{"forward reference", "return objects ;return #3 that are green ;return number of #1", 2, 3},
		{"self reference", "return objects ;return #2 that are green", 2, 2},
		{"missing step", "return objects ;return number of #4", 2, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReferences(qdmr.MustParse(tt.program))
			if tt.wantStep == 0 {
				assert.NoError(t, err)
				return
			}
			var se *StructuralError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantStep, se.Step)
			assert.Equal(t, tt.wantRef, se.Ref)
		})
	}
}
