package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const KeyPrefix = "session:"

// Store loads, replaces and deletes whole session records.
type Store interface {
	// Load returns NewState for missing, expired and corrupt records.
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, id string, s State) error
	Delete(ctx context.Context, id string) error
}

// KVStore keeps JSON-encoded states in a KV under "session:<id>".
type KVStore struct {
	kv  KV
	ttl time.Duration
	log *zap.Logger
}

// NewStore returns a store whose records expire ttl after their last save.
func NewStore(kv KV, ttl time.Duration, log *zap.Logger) *KVStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &KVStore{kv: kv, ttl: ttl, log: log}
}

func (s *KVStore) Load(ctx context.Context, id string) (State, error) {
	raw, err := s.kv.Get(ctx, KeyPrefix+id)
	if errors.Is(err, ErrNotFound) {
		return NewState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load session %s: %w", id, err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		s.log.Warn("corrupt session record, starting over",
			zap.String("session_id", id), zap.Error(err))
		return NewState(), nil
	}
	return st.repair(), nil
}

func (s *KVStore) Save(ctx context.Context, id string, st State) error {
	raw, err := json.Marshal(st.repair())
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if err := s.kv.Set(ctx, KeyPrefix+id, raw, s.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, KeyPrefix+id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// IDs lists the ids of live sessions.
func (s *KVStore) IDs(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, KeyPrefix))
	}
	return ids, nil
}
