package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleIndexWorkspace_WithoutIndexerReturnsInternalError(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	_, resp, err := o.handleIndexWorkspace(t.Context(), nil, IndexWorkspaceParams{})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "ERR_501_INTERNAL", resp.Error.Code)
}
