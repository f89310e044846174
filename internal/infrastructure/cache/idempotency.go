// Package cache holds the Redis-backed stores.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"stockledger/internal/core/apperror"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

const (
	idempotencyKeyPrefix = "idem:"

	// A pending key older than this belongs to a crashed request and may be reclaimed.
	staleAfter = time.Minute
)

// IdempotencyRecord is the JSON value stored under each key.
type IdempotencyRecord struct {
	Subject     string            `json:"subject"`
	Operation   string            `json:"operation"`
	Status      IdempotencyStatus `json:"status"`
	RequestHash string            `json:"requestHash"`
	StatusCode  int               `json:"statusCode,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// IdempotencyReplay is the cached HTTP response for replay.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore reserves idempotency keys with SET NX and keeps the
// final response for replay until the TTL expires.
type IdempotencyStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewIdempotencyStore creates a store. ttl bounds how long responses replay.
func NewIdempotencyStore(client redis.UniversalClient, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// AcquireKey attempts to acquire an idempotency key.
// Returns:
//   - (nil, nil) if key acquired successfully
//   - (cachedResponse, nil) if operation already completed (success or failed)
//   - (nil, error) if key is held by another request or reused for a different one
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, subject, operation, requestHash string) (*IdempotencyReplay, error) {
	redisKey := idempotencyKeyPrefix + key
	pending := IdempotencyRecord{
		Subject:     subject,
		Operation:   operation,
		Status:      IdempotencyStatusPending,
		RequestHash: requestHash,
		UpdatedAt:   time.Now().UTC(),
	}
	value, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey, value, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	record, err := s.get(ctx, redisKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// Expired between SETNX and GET; try once more.
		if ok, err := s.client.SetNX(ctx, redisKey, value, s.ttl).Result(); err != nil || !ok {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return nil, nil
	}

	if record.Subject != subject || record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", record.Operation).
			WithDetail("request_operation", operation)
	}

	switch record.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		return &IdempotencyReplay{
			StatusCode:  normalizeReplayStatus(record.StatusCode),
			ContentType: normalizeReplayContentType(record.ContentType),
			Body:        record.Body,
		}, nil
	default:
		if time.Since(record.UpdatedAt) > staleAfter {
			if err := s.client.Set(ctx, redisKey, value, s.ttl).Err(); err != nil {
				return nil, fmt.Errorf("reclaim stale key: %w", err)
			}
			return nil, nil
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}
}

// CompleteKey stores the final response. 2xx responses are stored as
// success, 4xx as failed; both replay. A 5xx releases the key so the client
// may retry.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	redisKey := idempotencyKeyPrefix + key
	if statusCode >= http.StatusInternalServerError {
		return s.client.Del(ctx, redisKey).Err()
	}

	record, err := s.get(ctx, redisKey)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	record.Status = IdempotencyStatusSuccess
	if statusCode >= http.StatusBadRequest {
		record.Status = IdempotencyStatusFailed
	}
	record.StatusCode = statusCode
	record.ContentType = contentType
	record.Body = body
	record.UpdatedAt = time.Now().UTC()

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	return s.client.Set(ctx, redisKey, value, s.ttl).Err()
}

// Ping checks the Redis connection for readiness probes.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *IdempotencyStore) get(ctx context.Context, redisKey string) (*IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	var record IdempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &record, nil
}

func normalizeReplayStatus(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}

func normalizeReplayContentType(ct string) string {
	if ct == "" {
		return "application/json; charset=utf-8"
	}
	return ct
}
