package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BaSui01/assetflow/internal/cache"
)

// BlobStore keeps assembled archives until they are downloaded or expire.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// CacheRecorder receives blob cache hits and misses.
type CacheRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

// =============================================================================
// 文件存储
// =============================================================================

// FileBlobStore writes each archive to <dir>/<key>.
type FileBlobStore struct {
	dir string
}

// NewFileBlobStore creates dir if needed.
func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileBlobStore{dir: dir}, nil
}

func (s *FileBlobStore) Put(_ context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	path := filepath.Join(s.dir, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write archive %s: %w", key, err)
	}
	return os.Rename(tmp, path)
}

func (s *FileBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound("archive", key)
		}
		return nil, fmt.Errorf("read archive %s: %w", key, err)
	}
	return data, nil
}

func (s *FileBlobStore) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete archive %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// Redis 存储
// =============================================================================

// RedisBlobStore keeps archives in redis under archive:<key> with a TTL.
type RedisBlobStore struct {
	cache    *cache.Manager
	ttl      time.Duration
	recorder CacheRecorder
}

// NewRedisBlobStore wraps a cache manager. recorder may be nil.
func NewRedisBlobStore(m *cache.Manager, ttl time.Duration, recorder CacheRecorder) *RedisBlobStore {
	return &RedisBlobStore{cache: m, ttl: ttl, recorder: recorder}
}

func (s *RedisBlobStore) key(k string) string { return "archive:" + k }

func (s *RedisBlobStore) Put(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.cache.SetBytes(ctx, s.key(key), data, s.ttl); err != nil {
		return fmt.Errorf("store archive %s: %w", key, err)
	}
	return nil
}

func (s *RedisBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := s.cache.GetBytes(ctx, s.key(key))
	if err != nil {
		if cache.IsCacheMiss(err) {
			s.record(false)
			return nil, notFound("archive", key)
		}
		return nil, fmt.Errorf("load archive %s: %w", key, err)
	}
	s.record(true)
	return data, nil
}

func (s *RedisBlobStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.cache.Delete(ctx, s.key(key))
}

func (s *RedisBlobStore) record(hit bool) {
	if s.recorder == nil {
		return
	}
	if hit {
		s.recorder.RecordCacheHit("archive")
	} else {
		s.recorder.RecordCacheMiss("archive")
	}
}
