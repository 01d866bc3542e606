package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkspaceMissing_CarriesRecoverySuggestion(t *testing.T) {
	err := NewWorkspaceMissing("/tmp/ws")
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeWorkspaceMissing, err.Code)
	assert.Equal(t, CategoryPrecondition, err.Category)
	assert.NotEmpty(t, err.Suggestion)
	assert.Equal(t, []string{err.Suggestion}, RecoverySteps(err))
}

func TestNewIndexMissing_Category(t *testing.T) {
	err := NewIndexMissing("/tmp/ws")
	assert.Equal(t, CategoryPrecondition, err.Category)
}

func TestNewInvalidQuery_Category(t *testing.T) {
	err := NewInvalidQuery("bad query")
	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, ErrCodeInvalidQueryKind, err.Code)
}

func TestDegradedCapabilityErrors_AreRetryable(t *testing.T) {
	for _, err := range []*AmanError{
		NewExtractorFailure("a.go", nil),
		NewEmbeddingFailure(nil),
		NewVectorExtensionUnavailable(nil),
	} {
		assert.True(t, IsRetryable(err), "code %s should be retryable", err.Code)
		assert.Equal(t, CategoryCapability, err.Category)
	}
}

func TestNewIndexInconsistency_IsRetryableAndCarriesPath(t *testing.T) {
	err := NewIndexInconsistency("a.go", nil)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "a.go", err.Details["path"])
}

func TestNewCancelled_IsNotRetryableAndInfoSeverity(t *testing.T) {
	err := NewCancelled()
	assert.False(t, IsRetryable(err))
	assert.Equal(t, SeverityInfo, err.Severity)
	assert.True(t, IsCancelled(err))
}

func TestRecoverySteps_NilForPlainError(t *testing.T) {
	assert.Nil(t, RecoverySteps(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "plain" }
