package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRecordAndGet(t *testing.T) {
	dyn := newFakeDynamo()
	ledger := NewToolCallLedger(dyn, "tool_call_ledger", testLogger())
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, &LedgerEntry{
		ToolCallID: "tc-1",
		CallID:     "call-abc",
		Message:    "Of course, a cleaning. What day works best for you?",
		Stage:      string(StageOfferingSlots),
	}))

	entry, err := ledger.Get(ctx, "tc-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "call-abc", entry.CallID)
	assert.Equal(t, string(StageOfferingSlots), entry.Stage)
	assert.NotEmpty(t, entry.RecordedAt)
	assert.NotZero(t, entry.ExpiresAt)
}

func TestLedgerGetUnseenReturnsNil(t *testing.T) {
	ledger := NewToolCallLedger(newFakeDynamo(), "tool_call_ledger", testLogger())

	entry, err := ledger.Get(context.Background(), "tc-unknown")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestLedgerFirstRecordedOutcomeStands(t *testing.T) {
	dyn := newFakeDynamo()
	ledger := NewToolCallLedger(dyn, "tool_call_ledger", testLogger())
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, &LedgerEntry{ToolCallID: "tc-1", Message: "first"}))
	// The losing conditional put is not an error.
	require.NoError(t, ledger.Record(ctx, &LedgerEntry{ToolCallID: "tc-1", Message: "second"}))

	entry, err := ledger.Get(ctx, "tc-1")
	require.NoError(t, err)
	assert.Equal(t, "first", entry.Message)
}

func TestLedgerRecordsErrorOutcome(t *testing.T) {
	ledger := NewToolCallLedger(newFakeDynamo(), "tool_call_ledger", testLogger())
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, &LedgerEntry{
		ToolCallID: "tc-2",
		CallID:     "call-abc",
		Message:    msgGenericSorry,
		Stage:      string(StageCollectingRequest),
		ErrorClass: string(FailureUserAmbiguity),
		ErrorCode:  CodeToolNotAllowed,
	}))

	entry, err := ledger.Get(ctx, "tc-2")
	require.NoError(t, err)
	assert.Equal(t, string(FailureUserAmbiguity), entry.ErrorClass)
	assert.Equal(t, CodeToolNotAllowed, entry.ErrorCode)
}

func TestLedgerValidatesEntry(t *testing.T) {
	ledger := NewToolCallLedger(newFakeDynamo(), "tool_call_ledger", testLogger())
	assert.Error(t, ledger.Record(context.Background(), nil))
	assert.Error(t, ledger.Record(context.Background(), &LedgerEntry{}))
}

func TestLedgerSurfacesBackendFailure(t *testing.T) {
	dyn := newFakeDynamo()
	dyn.err = errors.New("throttled")
	ledger := NewToolCallLedger(dyn, "tool_call_ledger", testLogger())

	_, err := ledger.Get(context.Background(), "tc-1")
	assert.Error(t, err)
	assert.Error(t, ledger.Record(context.Background(), &LedgerEntry{ToolCallID: "tc-1"}))
}
