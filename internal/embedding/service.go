package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// DefaultCacheCapacity is the number of embeddings kept in memory.
const DefaultCacheCapacity = 2048

// Model turns texts into raw embedding vectors, one per input, in order.
type Model interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Factory constructs a Model. A Service calls it again after a failed
// attempt once the retry delay has passed.
type Factory func(ctx context.Context) (Model, error)

// Delays between construction attempts after a failure. They double per
// consecutive failure up to the maximum.
const (
	retryBaseDelay = time.Second
	retryMaxDelay  = time.Minute
)

// Service owns the embedding model and a content-addressed cache in front
// of it. The model is built lazily on first use and at most one
// construction runs at a time. A Service is safe for concurrent use.
type Service struct {
	factory Factory

	mu       sync.Mutex
	ready    atomic.Pointer[Model]
	initErr  error
	failures int
	retryAt  time.Time
	now      func() time.Time

	cache  *lru.Cache[string, Vector]
	closed atomic.Bool
}

// NewService creates a service that builds its model with factory.
func NewService(factory Factory, cacheCapacity int) (*Service, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil model factory", model.ErrInvalidParameter)
	}
	cache, err := lru.New[string, Vector](cacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("%w: cache capacity %d: %v", model.ErrInvalidParameter, cacheCapacity, err)
	}
	return &Service{factory: factory, cache: cache, now: time.Now}, nil
}

// Init forces model construction. Calling it is optional.
func (s *Service) Init(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

func (s *Service) load(ctx context.Context) (Model, error) {
	if s.closed.Load() {
		return nil, &ErrUnavailable{Err: errShutdown}
	}
	if m := s.ready.Load(); m != nil {
		return *m, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, &ErrUnavailable{Err: errShutdown}
	}
	if m := s.ready.Load(); m != nil {
		return *m, nil
	}
	if s.initErr != nil && s.now().Before(s.retryAt) {
		return nil, &ErrUnavailable{Err: s.initErr}
	}

	start := time.Now()
	// The model outlives the request that happened to trigger it.
	m, err := s.factory(context.WithoutCancel(ctx))
	if err != nil {
		s.failures++
		delay := min(retryBaseDelay<<min(s.failures-1, 8), retryMaxDelay)
		s.initErr = err
		s.retryAt = s.now().Add(delay)
		slog.Error("embedding model construction failed",
			"error", err, "attempt", s.failures, "retry_in", delay)
		return nil, &ErrUnavailable{Err: err}
	}
	s.initErr, s.failures = nil, 0
	s.ready.Store(&m)
	slog.Info("embedding model loaded", "dimension", m.Dimension(), "elapsed", time.Since(start))
	return m, nil
}

// Dimension returns the model's vector length.
func (s *Service) Dimension(ctx context.Context) (int, error) {
	m, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return m.Dimension(), nil
}

// Embed returns the normalized embedding of text. Blank text yields a zero
// vector. The returned slice is shared with the cache and must not be
// modified.
func (s *Service) Embed(ctx context.Context, text string) (Vector, error) {
	vs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

// EmbedBatch embeds texts in order. Cached texts are served from memory and
// the rest go to the model in a single call.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Vector, len(texts))
	pending := make(map[string][]int)
	var keys, misses []string
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make(Vector, m.Dimension())
			continue
		}
		key := contentKey(t)
		if v, ok := s.cache.Get(key); ok {
			out[i] = v
			continue
		}
		if _, seen := pending[key]; !seen {
			keys = append(keys, key)
			misses = append(misses, t)
		}
		pending[key] = append(pending[key], i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	raw, err := m.Embed(ctx, misses)
	if err != nil {
		return nil, &ErrUnavailable{Err: err}
	}
	if len(raw) != len(misses) {
		return nil, &ErrUnavailable{Err: fmt.Errorf("model returned %d vectors for %d texts", len(raw), len(misses))}
	}
	for j, key := range keys {
		v := Normalize(FromFloat32(raw[j]))
		s.cache.Add(key, v)
		for _, i := range pending[key] {
			out[i] = v
		}
	}
	slog.Debug("embedded texts", "requested", len(texts), "computed", len(misses))
	return out, nil
}

// CacheLen returns the number of cached embeddings.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}

// Shutdown releases the model and empties the cache. Later calls report
// the service as unavailable.
func (s *Service) Shutdown() error {
	s.closed.Store(true)
	// Waits out a construction in flight; none starts afterwards.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	if m := s.ready.Load(); m != nil {
		if c, ok := (*m).(io.Closer); ok {
			if err := c.Close(); err != nil {
				return fmt.Errorf("close embedding model: %w", err)
			}
		}
	}
	slog.Info("embedding service shut down")
	return nil
}

func contentKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
