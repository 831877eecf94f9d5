package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultStateTTL = 4 * time.Hour

// ErrStateNotFound indicates no state exists for the call id.
var ErrStateNotFound = errors.New("conversation: state not found")

// StateStore keeps the live ConversationState per call in Redis. Lock
// serializes handler invocations for one call so a read-modify-write cycle
// is never interleaved; different calls never contend.
type StateStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStateStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *StateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("dental.internal.conversation.state")
	}
	return &StateStore{
		redis:  client,
		tracer: tracer,
		ttl:    ttl,
		locks:  map[string]*sync.Mutex{},
	}
}

// Lock acquires the per-call mutex and returns its unlock func.
func (s *StateStore) Lock(callID string) func() {
	s.mu.Lock()
	m, ok := s.locks[callID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[callID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Save persists the state, refreshing the call TTL.
func (s *StateStore) Save(ctx context.Context, state *ConversationState) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_state")
	defer span.End()

	if state == nil || state.CallID == "" {
		return errors.New("conversation: state with call id required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(state.CallID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

// Load returns the state for a call, or ErrStateNotFound.
func (s *StateStore) Load(ctx context.Context, callID string) (*ConversationState, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(callID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrStateNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var state ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return &state, nil
}

// Delete removes the state once a call has ended and been archived. The
// per-call mutex is dropped with it.
func (s *StateStore) Delete(ctx context.Context, callID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_state")
	defer span.End()

	if err := s.redis.Del(ctx, stateKey(callID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete state: %w", err)
	}

	s.mu.Lock()
	delete(s.locks, callID)
	s.mu.Unlock()
	return nil
}

func stateKey(callID string) string {
	return fmt.Sprintf("call_state:%s", callID)
}
