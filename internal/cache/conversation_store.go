package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"groundedchat/internal/model"
)

// ConversationStore keeps the most recent turns of each chat in a redis list.
// Entries expire on their own; there is no in-process state.
type ConversationStore struct {
	client   *redisv9.Client
	ttl      time.Duration
	maxTurns int
}

func NewConversationStore(client *redisv9.Client, ttl time.Duration, maxTurns int) *ConversationStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxTurns <= 0 {
		maxTurns = 50
	}
	return &ConversationStore{client: client, ttl: ttl, maxTurns: maxTurns}
}

// Recent returns the cached turns oldest first. The bool is false on a cache miss.
func (s *ConversationStore) Recent(ctx context.Context, chatID uint) ([]model.Message, bool, error) {
	raw, err := s.client.LRange(ctx, s.key(chatID), 0, -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lrange conversation failed: %w", err)
	}
	if len(raw) == 0 {
		return nil, false, nil
	}

	out := make([]model.Message, 0, len(raw))
	for _, item := range raw {
		var m model.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, false, fmt.Errorf("unmarshal cached turn failed: %w", err)
		}
		out = append(out, m)
	}
	return out, true, nil
}

// Seed replaces the cached conversation with messages.
func (s *ConversationStore) Seed(ctx context.Context, chatID uint, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	values, err := encodeTurns(messages)
	if err != nil {
		return err
	}
	key := s.key(chatID)
	_, err = s.client.TxPipelined(ctx, func(p redisv9.Pipeliner) error {
		p.Del(ctx, key)
		p.RPush(ctx, key, values...)
		p.LTrim(ctx, key, int64(-s.maxTurns), -1)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis seed conversation failed: %w", err)
	}
	return nil
}

// Append adds turns to a conversation that is already cached. A missing key
// is left alone so a partial list never masquerades as the full history.
func (s *ConversationStore) Append(ctx context.Context, chatID uint, turns ...model.Message) error {
	if len(turns) == 0 {
		return nil
	}
	values, err := encodeTurns(turns)
	if err != nil {
		return err
	}
	key := s.key(chatID)
	_, err = s.client.TxPipelined(ctx, func(p redisv9.Pipeliner) error {
		p.RPushX(ctx, key, values...)
		p.LTrim(ctx, key, int64(-s.maxTurns), -1)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append conversation failed: %w", err)
	}
	return nil
}

func (s *ConversationStore) Delete(ctx context.Context, chatID uint) error {
	if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
		return fmt.Errorf("redis delete conversation failed: %w", err)
	}
	return nil
}

func (s *ConversationStore) MaxTurns() int {
	return s.maxTurns
}

func (s *ConversationStore) key(chatID uint) string {
	return fmt.Sprintf("chat:conversation:%d", chatID)
}

func encodeTurns(turns []model.Message) ([]any, error) {
	values := make([]any, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("marshal turn failed: %w", err)
		}
		values = append(values, b)
	}
	return values, nil
}
