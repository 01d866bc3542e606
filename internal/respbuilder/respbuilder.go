// Package respbuilder implements the response builder / progressive reducer
// (C12): given a tool's raw result set it performs priority-aware, budgeted
// reduction into the bit-exact response envelope consumed by callers, using
// C11 to estimate cost and C10 to stash anything dropped.
//
// Every tool hands respbuilder a Strategy rather than its own reduction
// logic, mirroring the teacher's internal/scorer functional-options idiom:
// one engine, many pluggable policies.
package respbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	amerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/resourcestore"
	"github.com/codenav/codenavd/internal/tokenest"
)

// ResponseMode selects how aggressively results are reduced.
type ResponseMode string

const (
	ModeSummary  ResponseMode = "summary"
	ModeFull     ResponseMode = "full"
	ModeAdaptive ResponseMode = "adaptive"
)

// defaultTokenLimit is used when a caller declares no budget at all.
const defaultTokenLimit = 4000

// Item is one reduced unit of a tool's result set (a search hit, a symbol,
// a file, a replacement change, ...). Strategy functions operate on it
// generically; the concrete shape is whatever the tool handler produced.
type Item any

// TokenInfo reports the estimate/limit pair in every response's meta.
type TokenInfo struct {
	Estimated         int    `json:"estimated"`
	Limit             int    `json:"limit"`
	ReductionStrategy string `json:"reductionStrategy,omitempty"`
}

// Meta carries execution diagnostics alongside every response.
type Meta struct {
	ExecutionTime string    `json:"executionTime"`
	Truncated     bool      `json:"truncated"`
	ResourceURI   string    `json:"resourceUri,omitempty"`
	TokenInfo     TokenInfo `json:"tokenInfo"`
}

// Action is a suggested next step tailored to the tool and its result set.
type Action struct {
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Rationale   string         `json:"rationale,omitempty"`
	Priority    int            `json:"priority"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Recovery lists actionable steps a caller can take after a failure.
type Recovery struct {
	Steps []string `json:"steps"`
}

// ErrorInfo is the envelope's error shape (only present when Success=false).
type ErrorInfo struct {
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Recovery *Recovery `json:"recovery,omitempty"`
}

// Data is the envelope's payload.
type Data struct {
	Summary    string         `json:"summary"`
	Results    any            `json:"results"`
	Count      int            `json:"count"`
	Extensions map[string]any `json:"extensionData,omitempty"`
}

// Response is the bit-exact envelope shape described in spec §6.
type Response struct {
	Success  bool       `json:"success"`
	Data     Data       `json:"data"`
	Insights []string   `json:"insights"`
	Actions  []Action   `json:"actions"`
	Meta     Meta       `json:"meta"`
	Error    *ErrorInfo `json:"error,omitempty"`
}

// Strategy parameterizes the one reduction engine per tool. Every field is
// optional; a nil func degrades to a no-op (no reordering, zero per-item
// cost, no insights/actions).
type Strategy struct {
	// Less orders two items, most important first. Default: input order.
	Less func(a, b Item) bool

	// ItemTokenFn estimates the token cost of a single item. Default: the
	// estimator's JSON-field estimate of the item.
	ItemTokenFn func(item Item) int

	// CleanFn truncates/rounds one item for inclusion in the response
	// (shorten snippets, round scores, shorten paths). Default: identity.
	CleanFn func(item Item) Item

	// InsightFn produces ordered insight strings given the kept items, the
	// total item count before reduction, and whether reduction truncated
	// anything.
	InsightFn func(kept []Item, total int, truncated bool) []string

	// ActionFn produces ordered suggested actions given the same inputs.
	ActionFn func(kept []Item, total int) []Action

	// ExtensionFn optionally contributes extra tool-specific fields to
	// data.extensionData.
	ExtensionFn func(kept []Item, total int) map[string]any
}

// Context carries the per-request parameters that govern reduction.
type Context struct {
	ResponseMode     ResponseMode
	TokenLimit       int
	StoreFullResults bool
	ToolName         string
	CacheKey         string
}

// Builder is the one reduction engine every tool handler calls into.
type Builder struct {
	estimator tokenest.Estimator
	resources *resourcestore.Store
}

// New constructs a Builder. resources may be nil, in which case overflow is
// simply marked truncated without a retrievable URI.
func New(estimator tokenest.Estimator, resources *resourcestore.Store) *Builder {
	if estimator == nil {
		estimator = tokenest.Default{}
	}
	return &Builder{estimator: estimator, resources: resources}
}

// budgetSplit returns the (data, insights, actions) fractions of the total
// token budget, per spec §4.12's adaptive table. find_references is the
// only tool with a documented result-count-dependent split; every other
// tool uses the default split.
func budgetSplit(toolName string, n int, mode ResponseMode) (data, insights, actions float64) {
	data, insights, actions = 0.70, 0.15, 0.15

	if toolName == "find_references" {
		switch {
		case n == 0:
			data, insights, actions = 0.30, 0.35, 0.35
		case n == 1:
			data, insights, actions = 0.80, 0.10, 0.10
		case n <= 5:
			data, insights, actions = 0.75, 0.12, 0.13
		case n <= 20:
			data, insights, actions = 0.70, 0.15, 0.15
		case n <= 100:
			data, insights, actions = 0.68, 0.20, 0.12
		default:
			data, insights, actions = 0.65, 0.25, 0.10
		}
	}

	if mode == ModeSummary {
		data -= 0.05
		insights += 0.05
	}
	return data, insights, actions
}

// itemCost estimates the token cost of one item via the strategy's
// ItemTokenFn, falling back to a JSON-based estimate.
func (b *Builder) itemCost(strategy Strategy, item Item) int {
	if strategy.ItemTokenFn != nil {
		return strategy.ItemTokenFn(item)
	}
	blob, err := json.Marshal(item)
	if err != nil {
		return tokenest.StructuralOverhead
	}
	return b.estimator.EstimateString(string(blob))
}

// Build performs the 8-step reduction algorithm and returns a success
// response. Callers that hit an error before reaching the data stage should
// use BuildError instead.
func (b *Builder) Build(ctx context.Context, items []Item, strategy Strategy, rc Context) *Response {
	start := time.Now()

	limit := rc.TokenLimit
	if limit <= 0 {
		limit = defaultTokenLimit
	}

	// Step 2: rank items by priority_function (default: input order).
	ordered := make([]Item, len(items))
	copy(ordered, items)
	if strategy.Less != nil {
		sort.SliceStable(ordered, func(i, j int) bool { return strategy.Less(ordered[i], ordered[j]) })
	}

	dataFrac, insightsFrac, actionsFrac := budgetSplit(rc.ToolName, len(ordered), rc.ResponseMode)
	dataBudget := int(float64(limit) * dataFrac)
	insightsBudget := int(float64(limit) * insightsFrac)
	actionsBudget := int(float64(limit) * actionsFrac)

	// Steps 3-5: add items in priority order while running cost fits,
	// cleaning each kept item along the way.
	kept := make([]Item, 0, len(ordered))
	runningCost := 0
	truncated := false
	for _, it := range ordered {
		cost := b.itemCost(strategy, it)
		if runningCost+cost > dataBudget && len(kept) > 0 {
			truncated = true
			break
		}
		cleaned := it
		if strategy.CleanFn != nil {
			cleaned = strategy.CleanFn(it)
		}
		kept = append(kept, cleaned)
		runningCost += cost
		if runningCost > dataBudget {
			truncated = true
			break
		}
	}
	if len(kept) < len(ordered) {
		truncated = true
	}

	// Step 6: overflow to the resource store when anything was dropped.
	resourceURI := ""
	if truncated && rc.StoreFullResults && b.resources != nil {
		if blob, err := json.Marshal(ordered); err == nil {
			writeCtx := ctx
			res, err := b.resources.Put(writeCtx, blob)
			if err == nil && !res.Truncated {
				resourceURI = res.URI
			}
		}
	}

	// Step 7: insights and actions, tailored to the tool, each fit to budget.
	var insights []string
	if strategy.InsightFn != nil {
		insights = strategy.InsightFn(kept, len(ordered), truncated)
	}
	insights = fitInsights(insights, insightsBudget, b.estimator)

	var actions []Action
	if strategy.ActionFn != nil {
		actions = strategy.ActionFn(kept, len(ordered))
	}
	actions = fitActions(actions, actionsBudget, b.estimator)

	var ext map[string]any
	if strategy.ExtensionFn != nil {
		ext = strategy.ExtensionFn(kept, len(ordered))
	}

	resp := &Response{
		Success: true,
		Data: Data{
			Summary:    summaryLine(rc.ToolName, len(ordered), truncated),
			Results:    kept,
			Count:      len(ordered),
			Extensions: ext,
		},
		Insights: insights,
		Actions:  actions,
	}

	// Step 8: recompute the final token estimate and expose it in meta.
	estimated := runningCost
	for _, s := range insights {
		estimated += b.estimator.EstimateString(s)
	}
	for _, a := range actions {
		estimated += b.estimator.EstimateFields(a.Action, a.Description, a.Rationale)
	}
	estimated += tokenest.StructuralOverhead

	strategyLabel := ""
	if truncated {
		strategyLabel = "priority-truncation"
	}

	resp.Meta = Meta{
		ExecutionTime: time.Since(start).String(),
		Truncated:     truncated,
		ResourceURI:   resourceURI,
		TokenInfo: TokenInfo{
			Estimated:         estimated,
			Limit:             limit,
			ReductionStrategy: strategyLabel,
		},
	}

	return resp
}

// BuildError builds the success=false envelope for a tool failure, mapping
// an AmanError's code/message/suggestion into the envelope's error shape.
func BuildError(err error, rc Context, start time.Time) *Response {
	limit := rc.TokenLimit
	if limit <= 0 {
		limit = defaultTokenLimit
	}

	code := "ERR_501_INTERNAL"
	message := "internal error"
	var recovery *Recovery

	if err != nil {
		message = err.Error()
		if c := amerrors.GetCode(err); c != "" {
			code = c
		}
		if steps := amerrors.RecoverySteps(err); len(steps) > 0 {
			recovery = &Recovery{Steps: steps}
		}
	}

	return &Response{
		Success: false,
		Data:    Data{Summary: message, Count: 0},
		Error: &ErrorInfo{
			Code:     code,
			Message:  message,
			Recovery: recovery,
		},
		Meta: Meta{
			ExecutionTime: time.Since(start).String(),
			TokenInfo:     TokenInfo{Estimated: 0, Limit: limit},
		},
	}
}

// fitInsights keeps a prefix of insights whose cumulative estimated cost
// fits budget.
func fitInsights(insights []string, budget int, est tokenest.Estimator) []string {
	if budget <= 0 {
		return nil
	}
	kept := make([]string, 0, len(insights))
	cost := 0
	for _, s := range insights {
		c := est.EstimateString(s)
		if cost+c > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, s)
		cost += c
	}
	return kept
}

// fitActions keeps a prefix of actions whose cumulative estimated cost fits
// budget.
func fitActions(actions []Action, budget int, est tokenest.Estimator) []Action {
	if budget <= 0 {
		return nil
	}
	kept := make([]Action, 0, len(actions))
	cost := 0
	for _, a := range actions {
		c := est.EstimateFields(a.Action, a.Description, a.Rationale)
		if cost+c > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, a)
		cost += c
	}
	return kept
}

// summaryLine produces the data.summary one-liner.
func summaryLine(toolName string, total int, truncated bool) string {
	if total == 0 {
		return fmt.Sprintf("%s found no results", toolName)
	}
	plural := "s"
	if total == 1 {
		plural = ""
	}
	if truncated {
		return fmt.Sprintf("%s found %d result%s (response truncated to fit token budget)", toolName, total, plural)
	}
	return fmt.Sprintf("%s found %d result%s", toolName, total, plural)
}
