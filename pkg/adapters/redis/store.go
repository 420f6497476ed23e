package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// noExpiry is the index score of runs kept forever (2100-01-01).
const noExpiry = 4102444800

// Store implements ports.DocumentStore using Redis.
// Every run is a list of JSON records; a sorted set indexes the runs by expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration of recorded runs, renewed on every append.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for runs.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "beamline:run:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(runUID string) string {
	return s.prefix + runUID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Append pushes the document to the run's list and refreshes the index.
func (s *Store) Append(ctx context.Context, runUID string, doc domain.Document) error {
	rec, err := domain.NewRecord(doc)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	score := float64(noExpiry)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(runUID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(runUID), s.ttl)
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: runUID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// Load retrieves the run's records in append order.
func (s *Store) Load(ctx context.Context, runUID string) ([]domain.Record, error) {
	vals, err := s.client.LRange(ctx, s.key(runUID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrRunNotFound
	}

	recs := make([]domain.Record, 0, len(vals))
	for i, v := range vals {
		var rec domain.Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %d of run %s: %w", i, runUID, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Delete removes the run.
func (s *Store) Delete(ctx context.Context, runUID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(runUID))
	pipe.ZRem(ctx, s.indexKey(), runUID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the recorded runs, pruning expired entries from the index first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired runs: %w", err)
	}

	runs, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
