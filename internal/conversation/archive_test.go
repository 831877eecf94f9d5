package conversation

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveWritesFinalState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	state := NewConversationState("call-abc", 1)
	state.CurrentStage = StageBookingConfirmed

	mock.ExpectExec("INSERT INTO call_archive").
		WithArgs("call-abc", int64(1), string(StageBookingConfirmed), "caller ended",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	archive := NewCallArchive(db)
	require.NoError(t, archive.Archive(context.Background(), state, "caller ended"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveWithoutDatabaseIsNoop(t *testing.T) {
	var archive *CallArchive
	assert.NoError(t, archive.Archive(context.Background(), NewConversationState("call-abc", 1), "x"))

	archive = NewCallArchive(nil)
	assert.NoError(t, archive.Archive(context.Background(), NewConversationState("call-abc", 1), "x"))
	assert.NoError(t, archive.Archive(context.Background(), nil, "x"))
}
