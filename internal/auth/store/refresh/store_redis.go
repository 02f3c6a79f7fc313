package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

const (
	tokenKeyPrefix     = "rt:"
	userIndexKeyPrefix = "rt:user:"

	// Optimistic transactions under WATCH can fail when the key changes
	// between read and exec; a handful of retries is plenty since
	// contention per token value is bounded by the coordinator.
	rotateRetries = 5
)

// RedisStore is a Redis-backed refresh token store. This is the
// production-recommended implementation for distributed deployments where
// multiple instances share rotation state.
//
// Layout: one JSON value per token under "rt:<token>" with a TTL of expiry
// plus the grace retention period, and a per-user set "rt:user:<id>" indexing
// the user's token values.
type RedisStore struct {
	client redis.Cmdable
	grace  time.Duration
}

// NewRedisStore constructs a Redis-backed refresh token store. The grace
// duration extends key TTLs past token expiry so expired records remain
// inspectable for forensics before Redis drops them.
func NewRedisStore(client redis.Cmdable, grace time.Duration) *RedisStore {
	return &RedisStore{client: client, grace: grace}
}

type redisRecord struct {
	ID                string     `json:"id"`
	Token             string     `json:"token"`
	UserID            string     `json:"user_id"`
	Username          string     `json:"username"`
	Roles             []string   `json:"roles,omitempty"`
	DeviceFingerprint string     `json:"device_fingerprint,omitempty"`
	DeviceName        string     `json:"device_name,omitempty"`
	IP                string     `json:"ip,omitempty"`
	State             string     `json:"state"`
	ReplacedBy        string     `json:"replaced_by,omitempty"`
	IssuedAt          time.Time  `json:"issued_at"`
	ExpiresAt         time.Time  `json:"expires_at"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

func encodeRecord(rec *models.RefreshTokenRecord) ([]byte, error) {
	return json.Marshal(redisRecord{
		ID:                rec.ID.String(),
		Token:             rec.Token,
		UserID:            rec.UserID.String(),
		Username:          rec.Username,
		Roles:             rec.Roles,
		DeviceFingerprint: rec.DeviceFingerprint,
		DeviceName:        rec.DeviceName,
		IP:                rec.IP,
		State:             string(rec.State),
		ReplacedBy:        rec.ReplacedBy,
		IssuedAt:          rec.IssuedAt,
		ExpiresAt:         rec.ExpiresAt,
		LastUsedAt:        rec.LastUsedAt,
		RevokedAt:         rec.RevokedAt,
	})
}

func decodeRecord(data []byte) (*models.RefreshTokenRecord, error) {
	var raw redisRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode refresh record: %w", err)
	}
	tokenID, err := id.ParseTokenID(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("decode refresh record id: %w", err)
	}
	userID, err := id.ParseUserID(raw.UserID)
	if err != nil {
		return nil, fmt.Errorf("decode refresh record user id: %w", err)
	}
	return &models.RefreshTokenRecord{
		ID:                tokenID,
		Token:             raw.Token,
		UserID:            userID,
		Username:          raw.Username,
		Roles:             raw.Roles,
		DeviceFingerprint: raw.DeviceFingerprint,
		DeviceName:        raw.DeviceName,
		IP:                raw.IP,
		State:             models.TokenState(raw.State),
		ReplacedBy:        raw.ReplacedBy,
		IssuedAt:          raw.IssuedAt,
		ExpiresAt:         raw.ExpiresAt,
		LastUsedAt:        raw.LastUsedAt,
		RevokedAt:         raw.RevokedAt,
	}, nil
}

func (s *RedisStore) ttlFor(rec *models.RefreshTokenRecord, now time.Time) time.Duration {
	ttl := rec.ExpiresAt.Add(s.grace).Sub(now)
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

func (s *RedisStore) Create(ctx context.Context, rec *models.RefreshTokenRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	now := rec.IssuedAt
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKeyPrefix+rec.Token, data, s.ttlFor(rec, now))
	pipe.SAdd(ctx, userIndexKeyPrefix+rec.UserID.String(), rec.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create refresh record: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, token string) (*models.RefreshTokenRecord, error) {
	data, err := s.client.Get(ctx, tokenKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh record: %w", err)
	}
	return decodeRecord(data)
}

// Rotate uses an optimistic WATCH transaction so the validate-mark-insert
// sequence commits only if nobody else touched the presented token key.
func (s *RedisStore) Rotate(ctx context.Context, token string, successor *models.RefreshTokenRecord, now time.Time) (*models.RefreshTokenRecord, error) {
	watcher, ok := s.client.(interface {
		Watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error
	})
	if !ok {
		return nil, fmt.Errorf("redis client does not support transactions: %w", sentinel.ErrUnavailable)
	}

	key := tokenKeyPrefix + token
	var rotated *models.RefreshTokenRecord

	run := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get refresh record: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if err := rec.CanRotate(now); err != nil {
			rotated = rec
			return fmt.Errorf("refresh token %s: %w", rec.ID, err)
		}

		rec.MarkRotated(successor.Token, now)
		rotatedData, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		successorData, err := encodeRecord(successor)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, rotatedData, redis.KeepTTL)
			pipe.Set(ctx, tokenKeyPrefix+successor.Token, successorData, s.ttlFor(successor, now))
			pipe.SAdd(ctx, userIndexKeyPrefix+successor.UserID.String(), successor.Token)
			return nil
		})
		if err != nil {
			return err
		}
		rotated = rec
		return nil
	}

	for i := 0; i < rotateRetries; i++ {
		err := watcher.Watch(ctx, run, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return rotated, err
	}
	return nil, fmt.Errorf("rotate refresh token: too much contention: %w", sentinel.ErrConflict)
}

func (s *RedisStore) Revoke(ctx context.Context, token string, now time.Time) error {
	rec, err := s.Find(ctx, token)
	if err != nil {
		return err
	}
	if rec.State == models.TokenStateRevoked {
		return nil
	}
	rec.MarkRevoked(now)
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, tokenKeyPrefix+token, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("revoke refresh record: %w", err)
	}
	return nil
}

func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID id.UserID, now time.Time) (int, error) {
	return s.revokeMatching(ctx, userID, now, func(*models.RefreshTokenRecord) bool { return true })
}

func (s *RedisStore) RevokeDevice(ctx context.Context, userID id.UserID, fingerprint string, now time.Time) (int, error) {
	return s.revokeMatching(ctx, userID, now, func(rec *models.RefreshTokenRecord) bool {
		return rec.DeviceFingerprint == fingerprint
	})
}

func (s *RedisStore) revokeMatching(ctx context.Context, userID id.UserID, now time.Time, match func(*models.RefreshTokenRecord) bool) (int, error) {
	indexKey := userIndexKeyPrefix + userID.String()
	tokens, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list user refresh tokens: %w", err)
	}

	revoked := 0
	for _, token := range tokens {
		rec, err := s.Find(ctx, token)
		if errors.Is(err, sentinel.ErrNotFound) {
			// Key expired out from under the index; prune the entry.
			s.client.SRem(ctx, indexKey, token)
			continue
		}
		if err != nil {
			return revoked, err
		}
		if !match(rec) || rec.State == models.TokenStateRevoked {
			continue
		}
		if err := s.Revoke(ctx, token, now); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

func (s *RedisStore) ListActiveByUser(ctx context.Context, userID id.UserID, now time.Time) ([]*models.RefreshTokenRecord, error) {
	indexKey := userIndexKeyPrefix + userID.String()
	tokens, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list user refresh tokens: %w", err)
	}

	var out []*models.RefreshTokenRecord
	for _, token := range tokens {
		rec, err := s.Find(ctx, token)
		if errors.Is(err, sentinel.ErrNotFound) {
			s.client.SRem(ctx, indexKey, token)
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.Active(now) {
			out = append(out, rec)
		}
	}
	sortRecordsNewestFirst(out)
	return out, nil
}

// DeleteExpired prunes user index entries whose token keys Redis has already
// expired. The keys themselves are TTL-managed (expiry plus grace), so the
// returned count reflects pruned index entries.
func (s *RedisStore) DeleteExpired(ctx context.Context, _ time.Time, _ time.Duration) (int, error) {
	scanner, ok := s.client.(interface {
		Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	})
	if !ok {
		return 0, nil
	}

	pruned := 0
	var cursor uint64
	for {
		keys, next, err := scanner.Scan(ctx, cursor, userIndexKeyPrefix+"*", 100).Result()
		if err != nil {
			return pruned, fmt.Errorf("scan user indexes: %w", err)
		}
		for _, indexKey := range keys {
			tokens, err := s.client.SMembers(ctx, indexKey).Result()
			if err != nil {
				return pruned, fmt.Errorf("list user refresh tokens: %w", err)
			}
			for _, token := range tokens {
				exists, err := s.client.Exists(ctx, tokenKeyPrefix+token).Result()
				if err != nil {
					return pruned, err
				}
				if exists == 0 {
					s.client.SRem(ctx, indexKey, token)
					pruned++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return pruned, nil
		}
	}
}

func sortRecordsNewestFirst(recs []*models.RefreshTokenRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].IssuedAt.After(recs[j].IssuedAt) })
}
