package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFlowId_BlankRejected(t *testing.T) {
	_, err := NewFlowId("  ")
	require.Error(t, err)
	_, ok := IsArgumentError(err)
	require.True(t, ok)
}

func TestFlowKey_StorageKey(t *testing.T) {
	k, err := NewFlowKey("moneyTransfer", "user-1", "inst-1")
	require.NoError(t, err)
	require.Equal(t, "moneyTransfer:user-1:inst-1", k.StorageKey())
}

func TestFlowKey_StorageKey_AnonymousOwner(t *testing.T) {
	k, err := NewFlowKey("moneyTransfer", "", "inst-1")
	require.NoError(t, err)
	require.Equal(t, "moneyTransfer:anonymous:inst-1", k.StorageKey())
}

func TestFlowContext_EffectivePartitionKey(t *testing.T) {
	c, err := ContextForUser("inst-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", c.EffectivePartitionKey())

	c2, err := AnonymousContext("inst-2")
	require.NoError(t, err)
	require.Empty(t, c2.EffectivePartitionKey())

	c3, err := ContextWithPartition("inst-3", "user-2", "tenant-a")
	require.NoError(t, err)
	require.Equal(t, "tenant-a", c3.EffectivePartitionKey())
}

func TestPartitionFromRequestContext(t *testing.T) {
	key, err := NewFlowKey("approval", "user-1", "inst-1")
	require.NoError(t, err)

	_, ok := PartitionFromRequestContext(context.Background(), key)
	require.False(t, ok, "no FlowContext attached, provider should decline")

	fc, err := ContextWithPartition("inst-1", "user-1", "tenant-a")
	require.NoError(t, err)
	ctx := WithFlowContext(context.Background(), fc)

	p, ok := PartitionFromRequestContext(ctx, key)
	require.True(t, ok)
	require.Equal(t, "tenant-a", p)
}

func TestStepId_JSONRoundTrip(t *testing.T) {
	id, err := NewStepId("review")
	require.NoError(t, err)
	data, err := id.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"review"`, string(data))

	var out StepId
	require.NoError(t, out.UnmarshalJSON(data))
	require.Equal(t, id, out)
}
