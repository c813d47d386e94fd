package withdraw

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "withdrawals.json")

	h, err := NewHistory(path)
	require.NoError(t, err)

	id, err := h.Record(Submission{
		AssetID:   "nep141:usdc.near",
		Chain:     "arbitrum",
		Recipient: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		Amount:    "19",
	})
	require.NoError(t, err)

	sub, err := h.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, sub.Status)

	// Reopen from disk.
	reopened, err := NewHistory(path)
	require.NoError(t, err)
	sub, err = reopened.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "nep141:usdc.near", sub.AssetID)

	require.NoError(t, reopened.UpdateStatus(id, StatusSettled, "0xabc"))
	sub, err = reopened.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, sub.Status)
	assert.Equal(t, "0xabc", sub.TxHash)
	assert.Empty(t, reopened.Pending())
}

func TestHistoryPendingOnlyReturnsUnsettled(t *testing.T) {
	h, err := NewHistory(filepath.Join(t.TempDir(), "withdrawals.json"))
	require.NoError(t, err)

	first, err := h.Record(Submission{AssetID: "a", Chain: "near"})
	require.NoError(t, err)
	_, err = h.Record(Submission{AssetID: "b", Chain: "near"})
	require.NoError(t, err)

	require.NoError(t, h.UpdateStatus(first, StatusFailed, ""))

	pending := h.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].AssetID)
}

func TestHistoryGetReturnsCopy(t *testing.T) {
	h, err := NewHistory(filepath.Join(t.TempDir(), "withdrawals.json"))
	require.NoError(t, err)

	id, err := h.Record(Submission{AssetID: "a", Chain: "near"})
	require.NoError(t, err)

	sub, err := h.Get(id)
	require.NoError(t, err)
	sub.Status = StatusFailed

	again, err := h.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
}
