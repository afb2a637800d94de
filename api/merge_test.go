package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func upsert(e *Element) *BoardOperation {
	return &BoardOperation{Type: OperationUpsert, Element: e}
}

func TestApplyOperationCreatesDistinctElements(t *testing.T) {
	var elements []*Element

	elements, outcome, err := ApplyOperation(elements, upsert(&Element{
		ID: "a", Kind: ElementKindRectangle, X: fptr(10), Y: fptr(20),
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	elements, outcome, err = ApplyOperation(elements, upsert(&Element{
		ID: "b", Kind: ElementKindCircle, Radius: fptr(5),
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	// Insertion order is preserved
	require.Len(t, elements, 2)
	assert.Equal(t, "a", elements[0].ID)
	assert.Equal(t, "b", elements[1].ID)
}

func TestApplyOperationCreateRequiresKind(t *testing.T) {
	_, outcome, err := ApplyOperation(nil, upsert(&Element{ID: "a", X: fptr(1)}))
	require.ErrorIs(t, err, ErrInvalidKind)
	assert.Equal(t, OutcomeNoop, outcome)

	_, _, err = ApplyOperation(nil, upsert(&Element{ID: "a", Kind: "hexagon"}))
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestApplyOperationFreedrawPointsAppendInOrder(t *testing.T) {
	elements, _, err := ApplyOperation(nil, upsert(&Element{
		ID: "stroke", Kind: ElementKindFreedraw, Points: []float64{0, 0},
	}))
	require.NoError(t, err)

	elements, outcome, err := ApplyOperation(elements, upsert(&Element{
		ID: "stroke", Points: []float64{1, 1},
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAppended, outcome)

	elements, outcome, err = ApplyOperation(elements, upsert(&Element{
		ID: "stroke", Points: []float64{2, 2},
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAppended, outcome)

	require.Len(t, elements, 1)
	assert.Equal(t, []float64{0, 0, 1, 1, 2, 2}, elements[0].Points)
}

func TestApplyOperationFreedrawDuplicatePointsKept(t *testing.T) {
	// Points are concatenated as sent, never deduplicated. Applying the same
	// batch twice doubles the stroke.
	elements, _, err := ApplyOperation(nil, upsert(&Element{
		ID: "stroke", Kind: ElementKindFreedraw, Points: []float64{3, 4},
	}))
	require.NoError(t, err)

	elements, _, err = ApplyOperation(elements, upsert(&Element{
		ID: "stroke", Points: []float64{3, 4},
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 3, 4}, elements[0].Points)
}

func TestApplyOperationEmptyPointBatchIsNoop(t *testing.T) {
	elements, _, err := ApplyOperation(nil, upsert(&Element{
		ID: "stroke", Kind: ElementKindFreedraw, Points: []float64{1, 2},
	}))
	require.NoError(t, err)

	elements, outcome, err := ApplyOperation(elements, upsert(&Element{ID: "stroke"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)
	assert.Equal(t, []float64{1, 2}, elements[0].Points)
}

func TestApplyOperationFieldFreeUpsertIsNoop(t *testing.T) {
	elements, _, err := ApplyOperation(nil, upsert(&Element{
		ID: "r", Kind: ElementKindRectangle, X: fptr(10),
	}))
	require.NoError(t, err)

	// A payload carrying only the id changes nothing and reports so
	elements, outcome, err := ApplyOperation(elements, upsert(&Element{ID: "r"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)
	assert.Equal(t, 10.0, *elements[0].X)
}

func TestApplyOperationFieldwiseLastWriteWins(t *testing.T) {
	elements, _, err := ApplyOperation(nil, upsert(&Element{
		ID: "r", Kind: ElementKindRectangle,
		X: fptr(10), Y: fptr(20), Width: fptr(100), Color: sptr("#ff0000"),
	}))
	require.NoError(t, err)

	// A payload carrying only X updates X; absent fields stay untouched
	elements, outcome, err := ApplyOperation(elements, upsert(&Element{
		ID: "r", X: fptr(50),
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	e := elements[0]
	assert.Equal(t, 50.0, *e.X)
	assert.Equal(t, 20.0, *e.Y)
	assert.Equal(t, 100.0, *e.Width)
	assert.Equal(t, "#ff0000", *e.Color)
}

func TestApplyOperationKindIsImmutable(t *testing.T) {
	elements, _, err := ApplyOperation(nil, upsert(&Element{
		ID: "r", Kind: ElementKindRectangle, Width: fptr(10),
	}))
	require.NoError(t, err)

	// A later payload claiming a different kind merges fields but the
	// canonical kind stays what creation declared
	elements, _, err = ApplyOperation(elements, upsert(&Element{
		ID: "r", Kind: ElementKindCircle, Radius: fptr(7),
	}))
	require.NoError(t, err)
	assert.Equal(t, ElementKindRectangle, elements[0].Kind)
	assert.Equal(t, 7.0, *elements[0].Radius)
}

func TestApplyOperationDelete(t *testing.T) {
	elements, _, err := ApplyOperation(nil, upsert(&Element{ID: "a", Kind: ElementKindText, Text: sptr("hi")}))
	require.NoError(t, err)
	elements, _, err = ApplyOperation(elements, upsert(&Element{ID: "b", Kind: ElementKindArrow}))
	require.NoError(t, err)

	elements, outcome, err := ApplyOperation(elements, &BoardOperation{
		Type: OperationDelete, Element: &Element{ID: "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)
	require.Len(t, elements, 1)
	assert.Equal(t, "b", elements[0].ID)
}

func TestApplyOperationDeleteUnknownIDIsNoop(t *testing.T) {
	elements, _, err := ApplyOperation(nil, upsert(&Element{ID: "a", Kind: ElementKindText}))
	require.NoError(t, err)

	elements, outcome, err := ApplyOperation(elements, &BoardOperation{
		Type: OperationDelete, Element: &Element{ID: "ghost"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)
	assert.Len(t, elements, 1)
}

func TestApplyOperationRemoveFlagDeletes(t *testing.T) {
	elements, _, err := ApplyOperation(nil, upsert(&Element{ID: "a", Kind: ElementKindCircle}))
	require.NoError(t, err)

	// An upsert whose payload carries the remove flag is a delete, even
	// though the payload would otherwise merge
	elements, outcome, err := ApplyOperation(elements, upsert(&Element{
		ID: "a", Remove: true, Radius: fptr(9),
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)
	assert.Empty(t, elements)
}

func TestApplyOperationClearOverridesEverything(t *testing.T) {
	elements, _, err := ApplyOperation(nil, upsert(&Element{ID: "a", Kind: ElementKindRectangle}))
	require.NoError(t, err)
	elements, _, err = ApplyOperation(elements, upsert(&Element{ID: "b", Kind: ElementKindFreedraw, Points: []float64{1, 2}}))
	require.NoError(t, err)

	elements, outcome, err := ApplyOperation(elements, &BoardOperation{Type: OperationClear})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCleared, outcome)
	assert.Empty(t, elements)
}

func TestApplyOperationUnknownTypeRejected(t *testing.T) {
	elements, outcome, err := ApplyOperation(nil, &BoardOperation{
		Type: "rotate_canvas", Element: &Element{ID: "a"},
	})
	require.ErrorIs(t, err, ErrUnknownOperation)
	assert.Equal(t, OutcomeNoop, outcome)
	assert.Empty(t, elements)
}

func TestApplyOperationDeterministic(t *testing.T) {
	// The same operation sequence against the same starting collection must
	// produce the same result; mirrors rely on this to stay convergent.
	ops := []*BoardOperation{
		upsert(&Element{ID: "s", Kind: ElementKindFreedraw, Points: []float64{0, 0}, Color: sptr("#000")}),
		upsert(&Element{ID: "r", Kind: ElementKindRectangle, X: fptr(5), Width: fptr(40)}),
		upsert(&Element{ID: "s", Points: []float64{1, 1, 2, 2}}),
		upsert(&Element{ID: "r", X: fptr(9)}),
		{Type: OperationDelete, Element: &Element{ID: "r"}},
	}

	run := func() []*Element {
		var elements []*Element
		for _, op := range ops {
			var err error
			elements, _, err = ApplyOperation(elements, op)
			require.NoError(t, err)
		}
		return elements
	}

	assert.Equal(t, run(), run())
}

func TestElementCloneIsDeep(t *testing.T) {
	e := &Element{
		ID: "a", Kind: ElementKindFreedraw,
		Points: []float64{1, 2}, Color: sptr("#fff"),
	}
	c := e.Clone()

	c.Points[0] = 99
	*c.Color = "#000"
	assert.Equal(t, 1.0, e.Points[0])
	assert.Equal(t, "#fff", *e.Color)
}
