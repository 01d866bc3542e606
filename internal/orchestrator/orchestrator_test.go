package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/textindex"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeStore, *textindex.Index) {
	t.Helper()
	idx, err := textindex.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	st := newFakeStore()
	o, err := New(Deps{RootPath: "/workspace", Store: st, TextIndex: idx})
	require.NoError(t, err)
	return o, st, idx
}

func TestNew_ExposesMCPServer(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	require.NotNil(t, o.MCPServer())
}

func TestNew_RequiresStoreAndTextIndex(t *testing.T) {
	idx, err := textindex.Open("")
	require.NoError(t, err)
	defer idx.Close()

	_, err = New(Deps{TextIndex: idx})
	assert.Error(t, err, "store is required")

	_, err = New(Deps{Store: newFakeStore()})
	assert.Error(t, err, "text index is required")
}

func TestRequireIndex_FailsOnEmptyIndex(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	err := o.requireIndex(t.Context())
	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeIndexMissing, amerrors.GetCode(err))
}

func TestRequireIndex_PassesOnceDocumentsExist(t *testing.T) {
	o, _, idx := newTestOrchestrator(t)
	require.NoError(t, idx.UpsertDocument(t.Context(), textindex.Document{
		Path: "a.go", Content: "package a", LastModified: time.Now(),
	}))
	assert.NoError(t, o.requireIndex(t.Context()))
}

func TestBuildContext_DefaultsAndExplicitBudget(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	rc := o.buildContext("text_search", CommonParams{})
	assert.Equal(t, o.cfg.Budgets.DefaultMaxTokens, rc.TokenLimit)

	rc = o.buildContext("text_search", CommonParams{MaxTokens: 999})
	assert.Equal(t, 999, rc.TokenLimit)
}

func TestResolveWorkspace_DefaultsToRoot(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	assert.Equal(t, "/workspace", o.resolveWorkspace(""))
	assert.Equal(t, "/other", o.resolveWorkspace("/other"))
}

func TestCacheLookup_MissWithoutCache(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	resp, key, hit := o.cacheLookup("text_search", TextSearchParams{Query: "foo"}, false)
	assert.Nil(t, resp)
	assert.Empty(t, key)
	assert.False(t, hit)
}
