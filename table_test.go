package reactiveschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializeTableStaticRow(t *testing.T) {
	tm := &TableMetadata{
		Path: "#/rows",
		RowPlans: []RowPlan{
			StaticRow{Columns: []ColumnPlan{
				{Name: "a", Literal: 1.0},
				{Name: "b", HasLogic: true, Logic: mustCompile(t, map[string]any{
					"+": []any{map[string]any{"var": "$a"}, 1.0},
				})},
			}},
		},
	}
	ev := NewEvaluator()
	data := NewEvalData(nil, nil, nil)

	rows, err := MaterializeTable(tm, ev, data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, 1.0, row["a"])
	assert.Equal(t, 2.0, row["b"])
}

func TestMaterializeTableRepeatRowForward(t *testing.T) {
	tm := &TableMetadata{
		Path:        "#/rows",
		SkipLiteral: false,
		RowPlans: []RowPlan{
			RepeatRow{
				StartLiteral: 1.0,
				EndLiteral:   3.0,
				Columns: []ColumnPlan{
					{Name: "i", HasLogic: true, Logic: mustCompile(t, map[string]any{"var": "$iteration"})},
				},
				ForwardSet: map[string]bool{},
				NormalSet:  map[string]bool{"i": true},
			},
		},
	}
	ev := NewEvaluator()
	data := NewEvalData(nil, nil, nil)

	rows, err := MaterializeTable(tm, ev, data)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for idx, want := range []float64{1, 2, 3} {
		row := rows[idx].(map[string]any)
		assert.Equalf(t, want, row["i"], "row %d", idx)
	}
}

// TestMaterializeTableRepeatRowForwardChain exercises spec.md §8 Scenario
// S3: a genuine forward-reference repeat table where one forward column's
// VALUEAT reads the next row's forward value. suffixSum[i] = base[i] +
// suffixSum[i+1]; the first backward-sweep pass runs bottom-up, so each row
// reads its successor's value written earlier in the same pass and the
// result is the cumulative suffix sum.
func TestMaterializeTableRepeatRowForwardChain(t *testing.T) {
	tm := &TableMetadata{
		Path: "#/rows",
		RowPlans: []RowPlan{
			RepeatRow{
				StartLiteral: 0.0,
				EndLiteral:   3.0,
				Columns: []ColumnPlan{
					{Name: "base", HasLogic: true, Logic: mustCompile(t, map[string]any{"var": "$iteration"})},
					{
						Name:                "suffixSum",
						HasLogic:            true,
						HasForwardReference: true,
						Logic: mustCompile(t, map[string]any{
							"+": []any{
								map[string]any{"var": "$base"},
								map[string]any{"VALUEAT": []any{
									map[string]any{"var": "rows"},
									map[string]any{"+": []any{map[string]any{"var": "$iteration"}, 1.0}},
									"suffixSum",
								}},
							},
						}),
					},
				},
				ForwardSet: map[string]bool{"suffixSum": true},
				NormalSet:  map[string]bool{"base": true},
			},
		},
	}
	ev := NewEvaluator()
	data := NewEvalData(nil, nil, nil)

	rows, err := MaterializeTable(tm, ev, data)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	want := []float64{6, 6, 5, 3}
	for idx, w := range want {
		row := rows[idx].(map[string]any)
		assert.Equalf(t, w, row["suffixSum"], "row %d", idx)
	}
}

func TestMaterializeTableSkip(t *testing.T) {
	tm := &TableMetadata{
		Path:        "#/rows",
		SkipLiteral: true,
		RowPlans: []RowPlan{
			StaticRow{Columns: []ColumnPlan{{Name: "a", Literal: 1.0}}},
		},
	}
	ev := NewEvaluator()
	data := NewEvalData(nil, nil, nil)

	rows, err := MaterializeTable(tm, ev, data)
	require.NoError(t, err)
	assert.Empty(t, rows, "expected $skip to produce an empty table")
}

func TestMaterializeTableClearDoesNotEarlyReturn(t *testing.T) {
	// $clear must still let row plans run (e.g. so $datas-derived scope
	// stays consistent for later evaluation), but the final published
	// table is forced empty.
	tm := &TableMetadata{
		Path:         "#/rows",
		ClearLiteral: true,
		RowPlans: []RowPlan{
			StaticRow{Columns: []ColumnPlan{{Name: "a", Literal: 1.0}}},
		},
	}
	ev := NewEvaluator()
	data := NewEvalData(nil, nil, nil)

	rows, err := MaterializeTable(tm, ev, data)
	require.NoError(t, err)
	assert.Empty(t, rows, "expected $clear to publish an empty table")
}

func TestMaterializeTableRepeatRowEmptyRangeWhenStartAfterEnd(t *testing.T) {
	tm := &TableMetadata{
		Path: "#/rows",
		RowPlans: []RowPlan{
			RepeatRow{StartLiteral: 5.0, EndLiteral: 1.0},
		},
	}
	ev := NewEvaluator()
	data := NewEvalData(nil, nil, nil)

	rows, err := MaterializeTable(tm, ev, data)
	require.NoError(t, err)
	assert.Empty(t, rows, "expected empty result when start > end")
}
