package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CallArchive keeps a read-only copy of finished calls in Postgres for
// staff review. A nil archive (or one built without a database) is a
// no-op so call teardown never fails on the archive path.
type CallArchive struct {
	db *sql.DB
}

func NewCallArchive(db *sql.DB) *CallArchive {
	return &CallArchive{db: db}
}

// Archive stores the final state of a call.
func (a *CallArchive) Archive(ctx context.Context, state *ConversationState, reason string) error {
	if a == nil || a.db == nil || state == nil {
		return nil
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("conversation: archive marshal: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO call_archive (call_id, practice_id, final_stage, end_reason, state, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (call_id) DO UPDATE
		SET final_stage = EXCLUDED.final_stage,
		    end_reason = EXCLUDED.end_reason,
		    state = EXCLUDED.state,
		    ended_at = EXCLUDED.ended_at
	`,
		state.CallID,
		state.PracticeID,
		string(state.CurrentStage),
		reason,
		payload,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("conversation: archive insert: %w", err)
	}
	return nil
}
