package cjcs

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustInsertJob(t *testing.T, h *Handle) int64 {
	t.Helper()
	id, err := h.Insert(context.Background(), baseParams())
	require.NoError(t, err)
	return id
}

func TestInsertAndStart_NewModelIsOurs(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)

	modelID, ours, err := h.InsertAndStart(ctx, jobID, `{"lr":0.1}`, []byte("params-1"), nil)
	require.NoError(t, err)
	require.NotZero(t, modelID)
	assert.True(t, ours)

	info, err := h.ModelsInfo(ctx, []int64{modelID})
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, ModelStatusRunning, info[0].Status)
	assert.Equal(t, h.ConnID(), info[0].EngWorkerConnID)
}

func TestInsertAndStart_DuplicateHashReturnsExisting(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)

	m1, ours1, err := h.InsertAndStart(ctx, jobID, `{"lr":0.1}`, []byte("same-hash"), nil)
	require.NoError(t, err)
	assert.True(t, ours1)

	m2, ours2, err := h.InsertAndStart(ctx, jobID, `{"lr":0.1}`, []byte("same-hash"), nil)
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
	assert.False(t, ours2)
}

func TestInsertAndStart_DefaultsParticleHashToParamsHash(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)

	modelID, _, err := h.InsertAndStart(ctx, jobID, `{}`, []byte("only-hash"), nil)
	require.NoError(t, err)

	info, err := h.ModelsInfo(ctx, []int64{modelID})
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, info[0].EngParamsHash, info[0].EngParticleHash)
}

func TestModelsInfo_DuplicateIDsRejected(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)
	modelID, _, err := h.InsertAndStart(ctx, jobID, `{}`, []byte("a"), nil)
	require.NoError(t, err)

	_, err = h.ModelsInfo(ctx, []int64{modelID, modelID})
	require.ErrorIs(t, err, ErrDuplicateIDs)
}

func TestModelsInfo_MissingIDIsFatal(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)
	modelID, _, err := h.InsertAndStart(ctx, jobID, `{}`, []byte("a"), nil)
	require.NoError(t, err)

	_, err = h.ModelsInfo(ctx, []int64{modelID, 999999})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestModelUpdateResults_OwnershipGate(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)
	modelID, _, err := h.InsertAndStart(ctx, jobID, `{}`, []byte("a"), nil)
	require.NoError(t, err)

	results := "50% done"
	metric := 0.42
	records := int64(100)
	require.NoError(t, h.ModelUpdateResults(ctx, modelID, &results, &metric, &records))

	info, err := h.ModelsInfo(ctx, []int64{modelID})
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, "50% done", info[0].Results)
	require.NotNil(t, info[0].OptimizedMetric)
	assert.InDelta(t, 0.42, *info[0].OptimizedMetric, 1e-9)
	assert.Equal(t, int64(100), info[0].NumRecords)
}

func TestModelUpdateResults_FiltersNaNMetric(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)
	modelID, _, err := h.InsertAndStart(ctx, jobID, `{}`, []byte("a"), nil)
	require.NoError(t, err)

	nan := math.NaN()
	require.NoError(t, h.ModelUpdateResults(ctx, modelID, nil, &nan, nil))

	info, err := h.ModelsInfo(ctx, []int64{modelID})
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Nil(t, info[0].OptimizedMetric)
}

func TestModelSetCompleted_OwnershipGate(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)
	modelID, _, err := h.InsertAndStart(ctx, jobID, `{}`, []byte("a"), nil)
	require.NoError(t, err)

	require.NoError(t, h.ModelSetCompleted(ctx, modelID, CompletionReasonEOF, "ok", 1.5, true))

	info, err := h.ModelsInfo(ctx, []int64{modelID})
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, ModelStatusCompleted, info[0].Status)
	assert.Equal(t, string(CompletionReasonEOF), info[0].CompletionReason)
}

func TestAdoptNextOrphan_ClaimsStaleModel(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)
	modelID, _, err := h.InsertAndStart(ctx, jobID, `{}`, []byte("a"), nil)
	require.NoError(t, err)

	_, found, err := h.AdoptNextOrphan(ctx, jobID, 3600)
	require.NoError(t, err)
	assert.False(t, found, "a fresh model's heartbeat is not yet stale")

	adopted, found, err := h.AdoptNextOrphan(ctx, jobID, -1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, modelID, adopted)
}

func TestModelsClearAll_RemovesEveryModel(t *testing.T) {
	h := setupTestHandle(t)
	ctx := context.Background()
	jobID := mustInsertJob(t, h)
	_, _, err := h.InsertAndStart(ctx, jobID, `{}`, []byte("a"), nil)
	require.NoError(t, err)

	require.NoError(t, h.ModelsClearAll(ctx))

	ids, err := h.GetModelIDsForJob(ctx, jobID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
