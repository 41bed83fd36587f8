package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	ErrProfileNotFound         = errors.New("profile record not found")
	ErrProfileRedisUnavailable = errors.New("profile redis unavailable")
	ErrProfileRecordCorrupt    = errors.New("profile record corrupt")
)

// ProfileRecord is the memoized result of one profile fetch. Timestamp is
// epoch milliseconds of the network fetch.
type ProfileRecord struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// ProfileStore keeps one record per user id. Records carry no Redis TTL:
// they are only replaced, never evicted.
type ProfileStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewProfileStore(redisClient redis.UniversalClient, prefix string) *ProfileStore {
	if prefix == "" {
		prefix = "vz"
	}
	return &ProfileStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ProfileStore) key(userID string) string {
	return s.prefix + ":profile:" + userID
}

func (s *ProfileStore) Save(ctx context.Context, userID string, record *ProfileRecord) error {
	if userID == "" {
		return errors.New("profile record requires user id")
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(userID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrProfileRedisUnavailable, err)
	}
	return nil
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (*ProfileRecord, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProfileRedisUnavailable, err)
	}

	var record ProfileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileRecordCorrupt, err)
	}
	if len(record.Data) == 0 {
		return nil, ErrProfileRecordCorrupt
	}
	return &record, nil
}

func (s *ProfileStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrProfileRedisUnavailable, err)
	}
	return nil
}
