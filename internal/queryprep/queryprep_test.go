package queryprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_EmptyQueryDefaultsStandard(t *testing.T) {
	r, err := Process("   ", ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, ModeStandard, r.DetectedMode)
	assert.Equal(t, FieldContent, r.TargetField)
}

func TestProcess_PureWildcardIsInvalid(t *testing.T) {
	_, err := Process("***", ModeAuto)
	require.Error(t, err)
}

func TestProcess_LeadingWildcardSanitized(t *testing.T) {
	r, err := Process("*foo", ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, "foo", r.ProcessedQuery)
}

func TestProcess_AutoPunctuationGoesToPattern(t *testing.T) {
	r, err := Process("foo(bar)", ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, ModePattern, r.DetectedMode)
	assert.Equal(t, FieldContentPatterns, r.TargetField)
}

func TestProcess_AutoCamelCaseGoesToSymbol(t *testing.T) {
	r, err := Process("handleRequest", ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, ModeSymbol, r.DetectedMode)
	assert.Equal(t, FieldContentSymbols, r.TargetField)
}

func TestProcess_AutoKeywordNameGoesToSymbol(t *testing.T) {
	r, err := Process("class Handler", ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, ModeSymbol, r.DetectedMode)
	assert.Equal(t, "Handler", r.ProcessedQuery)
}

func TestProcess_AutoPlainWordsGoToStandard(t *testing.T) {
	r, err := Process("hello world", ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, ModeStandard, r.DetectedMode)
	assert.Equal(t, FieldContent, r.TargetField)
}

func TestProcess_SymbolModeStripsLeadingKeyword(t *testing.T) {
	r, err := Process("def handle_request", ModeSymbol)
	require.NoError(t, err)
	assert.Equal(t, "handle_request", r.ProcessedQuery)
	assert.Equal(t, FieldContentSymbols, r.TargetField)
}

func TestProcess_FuzzyMapsToStandard(t *testing.T) {
	r, err := Process("approxmate", ModeFuzzy)
	require.NoError(t, err)
	assert.Equal(t, ModeStandard, r.DetectedMode)
	assert.Equal(t, "fuzzy not supported", r.Reason)
}

func TestProcess_ExplicitPatternModeHonored(t *testing.T) {
	r, err := Process("plainword", ModePattern)
	require.NoError(t, err)
	assert.Equal(t, ModePattern, r.DetectedMode)
	assert.Equal(t, FieldContentPatterns, r.TargetField)
}
