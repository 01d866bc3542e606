package respbuilder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/codenav/codenavd/internal/errors"
)

type fakeHit struct {
	Path  string `json:"path"`
	Score float64 `json:"score"`
}

func TestBuild_KeepsAllItemsWhenBudgetIsAmple(t *testing.T) {
	b := New(nil, nil)
	items := []Item{fakeHit{Path: "a.go", Score: 0.9}, fakeHit{Path: "b.go", Score: 0.5}}

	resp := b.Build(context.Background(), items, Strategy{}, Context{ToolName: "text_search", TokenLimit: 4000})

	require.True(t, resp.Success)
	assert.Equal(t, 2, resp.Data.Count)
	assert.False(t, resp.Meta.Truncated)
	assert.Empty(t, resp.Meta.ResourceURI)
	assert.LessOrEqual(t, resp.Meta.TokenInfo.Estimated, resp.Meta.TokenInfo.Limit)
}

func TestBuild_TruncatesWhenBudgetIsTiny(t *testing.T) {
	b := New(nil, nil)
	items := make([]Item, 0, 50)
	for i := 0; i < 50; i++ {
		items = append(items, fakeHit{Path: "file.go", Score: 0.5})
	}

	resp := b.Build(context.Background(), items, Strategy{}, Context{ToolName: "text_search", TokenLimit: 40})

	assert.True(t, resp.Meta.Truncated)
	results, ok := resp.Data.Results.([]Item)
	require.True(t, ok)
	assert.Less(t, len(results), 50)
	assert.Equal(t, 50, resp.Data.Count, "count reflects the full result set, not just kept items")
}

func TestBuild_AlwaysKeepsAtLeastOneItem(t *testing.T) {
	b := New(nil, nil)
	items := []Item{fakeHit{Path: "huge.go", Score: 1}}

	resp := b.Build(context.Background(), items, Strategy{}, Context{ToolName: "text_search", TokenLimit: 1})

	results, ok := resp.Data.Results.([]Item)
	require.True(t, ok)
	assert.Len(t, results, 1, "the first item is never dropped even if it alone exceeds budget")
}

func TestBuild_RespectsLessOrdering(t *testing.T) {
	b := New(nil, nil)
	items := []Item{fakeHit{Path: "low.go", Score: 0.1}, fakeHit{Path: "high.go", Score: 0.9}}

	strategy := Strategy{
		Less: func(a, b Item) bool {
			return a.(fakeHit).Score > b.(fakeHit).Score
		},
	}

	resp := b.Build(context.Background(), items, strategy, Context{ToolName: "text_search", TokenLimit: 4000})

	results := resp.Data.Results.([]Item)
	require.Len(t, results, 2)
	assert.Equal(t, "high.go", results[0].(fakeHit).Path)
}

func TestBudgetSplit_FindReferencesAdaptsToResultCount(t *testing.T) {
	data, insights, actions := budgetSplit("find_references", 0, ModeAdaptive)
	assert.InDelta(t, 0.30, data, 0.001)
	assert.InDelta(t, 0.35, insights, 0.001)
	assert.InDelta(t, 0.35, actions, 0.001)

	data, insights, actions = budgetSplit("find_references", 1, ModeAdaptive)
	assert.InDelta(t, 0.80, data, 0.001)
	assert.InDelta(t, 0.10, insights, 0.001)
	assert.InDelta(t, 0.10, actions, 0.001)

	data, _, _ = budgetSplit("find_references", 500, ModeAdaptive)
	assert.InDelta(t, 0.65, data, 0.001)
}

func TestBudgetSplit_SummaryModeShiftsFromDataToInsights(t *testing.T) {
	data, insights, _ := budgetSplit("text_search", 10, ModeFull)
	summaryData, summaryInsights, _ := budgetSplit("text_search", 10, ModeSummary)

	assert.InDelta(t, data-0.05, summaryData, 0.001)
	assert.InDelta(t, insights+0.05, summaryInsights, 0.001)
}

func TestBuild_InsightsAndActionsAreFitToTheirBudget(t *testing.T) {
	b := New(nil, nil)
	strategy := Strategy{
		InsightFn: func(kept []Item, total int, truncated bool) []string {
			return []string{"first insight", "second insight that is much longer than the first one by far"}
		},
		ActionFn: func(kept []Item, total int) []Action {
			return []Action{{Action: "refine", Description: "narrow the query", Priority: 1}}
		},
	}

	resp := b.Build(context.Background(), []Item{fakeHit{Path: "a.go", Score: 1}}, strategy, Context{ToolName: "text_search", TokenLimit: 4000})

	assert.NotEmpty(t, resp.Insights)
	assert.NotEmpty(t, resp.Actions)
}

func TestBuildError_MapsAmanErrorCodeAndSuggestion(t *testing.T) {
	err := amerrors.NewWorkspaceMissing("/tmp/proj")

	resp := BuildError(err, Context{ToolName: "text_search", TokenLimit: 4000}, time.Now())

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, amerrors.ErrCodeWorkspaceMissing, resp.Error.Code)
	require.NotNil(t, resp.Error.Recovery)
	assert.NotEmpty(t, resp.Error.Recovery.Steps)
}

func TestBuildError_PlainErrorGetsInternalCode(t *testing.T) {
	resp := BuildError(assertErr("boom"), Context{TokenLimit: 4000}, time.Now())

	assert.False(t, resp.Success)
	assert.Equal(t, "ERR_501_INTERNAL", resp.Error.Code)
}

type plainError string

func (e plainError) Error() string { return string(e) }

func assertErr(msg string) error { return plainError(msg) }
