package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrBatchNotFound is returned when a batch has expired or never existed.
var ErrBatchNotFound = errors.New("quote: batch not found")

const (
	batchKeyPrefix   = "ongkir:batch:"
	sessionKeyPrefix = "ongkir:session:"
	generationKey    = "ongkir:generation"

	metaField        = "meta"
	stateFieldPrefix = "state:"
)

// Batch is a snapshot of one quote request and its normalized options,
// together with the per-option discount enrichment states.
type Batch struct {
	ID         string                   `json:"id"`
	Generation int64                    `json:"generation"`
	CreatedAt  time.Time                `json:"created_at"`
	Request    Request                  `json:"request"`
	Options    []Option                 `json:"options"`
	States     map[string]DiscountState `json:"-"`
}

// Pending reports whether any option is still waiting for its
// discount lookup to settle.
func (b *Batch) Pending() bool {
	for _, state := range b.States {
		if state.Loading {
			return true
		}
	}
	return false
}

// batchMeta is the immutable part of a batch, written once at creation.
type batchMeta struct {
	Generation int64     `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
	Request    Request   `json:"request"`
	Options    []Option  `json:"options"`
}

// BatchStore keeps quote batches in Redis hashes. Each batch is one
// hash: the "meta" field holds the request and options, and every
// option gets its own "state:<id>" field so concurrent discount
// writers touch disjoint fields and need no coordination. TTL expiry
// takes care of stale batches.
type BatchStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBatchStore constructs a BatchStore with the given batch lifetime.
func NewBatchStore(client *redis.Client, ttl time.Duration) *BatchStore {
	return &BatchStore{client: client, ttl: ttl}
}

// Create persists a new batch stamped with the next global generation.
// When the request carries a session key, the previous batch held
// under that key is deleted so late discount writes against it land
// nowhere.
func (s *BatchStore) Create(ctx context.Context, req Request, options []Option) (*Batch, error) {
	generation, err := s.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return nil, fmt.Errorf("quote: next generation: %w", err)
	}

	batch := &Batch{
		ID:         uuid.NewString(),
		Generation: generation,
		CreatedAt:  time.Now().UTC(),
		Request:    req,
		Options:    options,
		States:     make(map[string]DiscountState, len(options)),
	}

	meta, err := json.Marshal(batchMeta{
		Generation: batch.Generation,
		CreatedAt:  batch.CreatedAt,
		Request:    batch.Request,
		Options:    batch.Options,
	})
	if err != nil {
		return nil, err
	}

	fields := make([]any, 0, 2+2*len(options))
	fields = append(fields, metaField, meta)
	loading, err := json.Marshal(DiscountState{Loading: true})
	if err != nil {
		return nil, err
	}
	for _, opt := range options {
		fields = append(fields, stateFieldPrefix+opt.ID, loading)
		batch.States[opt.ID] = DiscountState{Loading: true}
	}

	key := batchKeyPrefix + batch.ID
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("quote: store batch: %w", err)
	}

	if req.SessionKey != "" {
		if err := s.supersede(ctx, req.SessionKey, batch.ID); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func (s *BatchStore) supersede(ctx context.Context, sessionKey, batchID string) error {
	key := sessionKeyPrefix + sessionKey
	previous, err := s.client.GetSet(ctx, key, batchID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("quote: swap session batch: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return err
	}
	if previous != "" && previous != batchID {
		if err := s.client.Del(ctx, batchKeyPrefix+previous).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
	}
	return nil
}

// Get returns a point-in-time snapshot of the batch.
func (s *BatchStore) Get(ctx context.Context, batchID string) (*Batch, error) {
	fields, err := s.client.HGetAll(ctx, batchKeyPrefix+batchID).Result()
	if err != nil {
		return nil, fmt.Errorf("quote: load batch: %w", err)
	}
	raw, ok := fields[metaField]
	if !ok {
		return nil, ErrBatchNotFound
	}

	var meta batchMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("quote: decode batch %s: %w", batchID, err)
	}

	batch := &Batch{
		ID:         batchID,
		Generation: meta.Generation,
		CreatedAt:  meta.CreatedAt,
		Request:    meta.Request,
		Options:    meta.Options,
		States:     make(map[string]DiscountState),
	}
	for field, value := range fields {
		optionID, found := strings.CutPrefix(field, stateFieldPrefix)
		if !found {
			continue
		}
		var state DiscountState
		if err := json.Unmarshal([]byte(value), &state); err != nil {
			return nil, fmt.Errorf("quote: decode state %s/%s: %w", batchID, optionID, err)
		}
		batch.States[optionID] = state
	}
	return batch, nil
}

// SetDiscount records the settled discount state for one option. A
// write against a batch that expired or was superseded is discarded
// silently: the caller raced a newer request and its result is moot.
func (s *BatchStore) SetDiscount(ctx context.Context, batchID, optionID string, state DiscountState) error {
	key := batchKeyPrefix + batchID
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("quote: check batch: %w", err)
	}
	if exists == 0 {
		return nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, key, stateFieldPrefix+optionID, payload).Err(); err != nil {
		return fmt.Errorf("quote: store discount state: %w", err)
	}
	return nil
}

// CurrentBatch resolves the batch currently held for a session key.
func (s *BatchStore) CurrentBatch(ctx context.Context, sessionKey string) (string, error) {
	id, err := s.client.Get(ctx, sessionKeyPrefix+sessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrBatchNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
