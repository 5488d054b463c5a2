// Package session keeps signup flow sessions in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackit-tw/recruit/internal/domain/signup"
)

const (
	dataPrefix      = "user_data:"
	submittedPrefix = "signup_submitted:"
)

// Store implements signup.SessionStore.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New returns a Store whose sessions expire after ttl without activity.
func New(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Load implements signup.SessionStore.
func (s *Store) Load(ctx context.Context, externalID string) (signup.Data, bool, error) {
	raw, err := s.client.Get(ctx, dataPrefix+externalID).Bytes()
	if errors.Is(err, redis.Nil) {
		return signup.Data{}, false, nil
	}
	if err != nil {
		return signup.Data{}, false, fmt.Errorf("redis get: %w", err)
	}
	var d signup.Data
	if err := json.Unmarshal(raw, &d); err != nil {
		// A corrupt session is treated like an expired one.
		return signup.Data{}, false, nil
	}
	return d, true, nil
}

// Save implements signup.SessionStore. Every save renews the TTL.
func (s *Store) Save(ctx context.Context, externalID string, d signup.Data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, dataPrefix+externalID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements signup.SessionStore.
func (s *Store) Delete(ctx context.Context, externalID string) error {
	if err := s.client.Del(ctx, dataPrefix+externalID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// MarkSubmitted implements signup.SessionStore. The marker never expires.
func (s *Store) MarkSubmitted(ctx context.Context, externalID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, submittedPrefix+externalID, "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Submitted implements signup.SessionStore.
func (s *Store) Submitted(ctx context.Context, externalID string) (bool, error) {
	n, err := s.client.Exists(ctx, submittedPrefix+externalID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ signup.SessionStore = (*Store)(nil)
