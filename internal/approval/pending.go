package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saturn-platform/opsclaw/internal/command"
)

// ErrNotFound is returned by Take when nothing is pending for the session or
// the pending intent has expired.
var ErrNotFound = errors.New("no pending confirmation")

const pendingKeyPrefix = "opsclaw:pending:"

// PendingStore keeps intents awaiting asynchronous confirmation in Redis.
type PendingStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPendingStore(client *redis.Client, ttl time.Duration) *PendingStore {
	return &PendingStore{client: client, ttl: ttl}
}

// Save stores intent for sessionID, replacing any earlier one.
func (s *PendingStore) Save(ctx context.Context, sessionID string, intent command.ParsedIntent) error {
	key, err := pendingKey(sessionID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encode pending intent: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save pending intent: %w", err)
	}
	return nil
}

// Take returns and removes the pending intent for sessionID.
func (s *PendingStore) Take(ctx context.Context, sessionID string) (command.ParsedIntent, error) {
	key, err := pendingKey(sessionID)
	if err != nil {
		return command.ParsedIntent{}, err
	}
	data, err := s.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return command.ParsedIntent{}, ErrNotFound
	}
	if err != nil {
		return command.ParsedIntent{}, fmt.Errorf("take pending intent: %w", err)
	}

	var intent command.ParsedIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return command.ParsedIntent{}, fmt.Errorf("decode pending intent: %w", err)
	}
	return intent, nil
}

// Discard drops any pending intent for sessionID.
func (s *PendingStore) Discard(ctx context.Context, sessionID string) error {
	key, err := pendingKey(sessionID)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("discard pending intent: %w", err)
	}
	return nil
}

func pendingKey(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	return pendingKeyPrefix + sessionID, nil
}
