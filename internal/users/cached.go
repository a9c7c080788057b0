package users

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/brucki/mg-test/internal/cache"
	"github.com/brucki/mg-test/internal/domain/user"
)

const (
	listKey       = "users:list"
	userKeyPrefix = "users:"
)

type CachedConfig struct {
	TTL time.Duration
	// OnLookup is called for every cache read with the operation name
	// ("list" or "get") and whether it hit.
	OnLookup func(op string, hit bool)
}

// CachedService serves ListUsers and GetUser from a Store and invalidates
// the affected keys after every successful write.
type CachedService struct {
	inner Service
	store cache.Store
	cfg   CachedConfig
	log   *slog.Logger
}

func NewCached(inner Service, store cache.Store, cfg CachedConfig, log *slog.Logger) *CachedService {
	if log == nil {
		log = slog.Default()
	}
	return &CachedService{inner: inner, store: store, cfg: cfg, log: log}
}

func userKey(id int64) string {
	return userKeyPrefix + strconv.FormatInt(id, 10)
}

func (s *CachedService) ListUsers(ctx context.Context) ([]user.Record, error) {
	if raw, ok := s.lookup(ctx, "list", listKey); ok {
		if recs, err := decodeRecords(raw); err == nil {
			return recs, nil
		}
		s.evict(ctx, listKey)
	}

	recs, err := s.inner.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	snaps := make([]map[string]any, len(recs))
	for i, r := range recs {
		snaps[i] = r.Snapshot()
	}
	s.put(ctx, listKey, snaps)
	return recs, nil
}

func (s *CachedService) GetUser(ctx context.Context, id int64) (user.Record, error) {
	key := userKey(id)
	if raw, ok := s.lookup(ctx, "get", key); ok {
		if rec, err := user.DecodeWire(raw); err == nil {
			return rec, nil
		}
		s.evict(ctx, key)
	}

	rec, err := s.inner.GetUser(ctx, id)
	if err != nil {
		return user.Record{}, err
	}
	s.put(ctx, key, rec.Snapshot())
	return rec, nil
}

func (s *CachedService) CreateUser(ctx context.Context, rec user.Record) (user.Record, error) {
	out, err := s.inner.CreateUser(ctx, rec)
	if err != nil {
		return user.Record{}, err
	}

	keys := []string{listKey}
	if id, ok := out.ID(); ok {
		keys = append(keys, userKey(id))
	}
	s.evict(ctx, keys...)
	return out, nil
}

func (s *CachedService) UpdateUser(ctx context.Context, rec user.Record) (user.Record, error) {
	out, err := s.inner.UpdateUser(ctx, rec)
	if err != nil {
		return user.Record{}, err
	}

	id, _ := rec.ID()
	s.evict(ctx, listKey, userKey(id))
	return out, nil
}

func (s *CachedService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.inner.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.evict(ctx, listKey, userKey(id))
	return nil
}

// Store failures degrade to a miss; they never fail the call.
func (s *CachedService) lookup(ctx context.Context, op, key string) ([]byte, bool) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		ok = false
	}
	if s.cfg.OnLookup != nil {
		s.cfg.OnLookup(op, ok)
	}
	return raw, ok
}

func (s *CachedService) put(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.WarnContext(ctx, "cache encode failed", "key", key, "err", err)
		return
	}
	if err := s.store.Set(ctx, key, raw, s.cfg.TTL); err != nil {
		s.log.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
}

func (s *CachedService) evict(ctx context.Context, keys ...string) {
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.log.WarnContext(ctx, "cache delete failed", "keys", keys, "err", err)
	}
}

func decodeRecords(raw []byte) ([]user.Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	out := make([]user.Record, 0, len(items))
	for _, item := range items {
		rec, err := user.DecodeWire(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
