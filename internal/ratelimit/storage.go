package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"blackroad.io/operator/internal/metrics"
)

// Bucket is one key's token bucket.
type Bucket struct {
	Limiter *rate.Limiter

	lastSeen atomic.Int64
}

// Touch records that the bucket was used at t.
func (b *Bucket) Touch(t time.Time) {
	b.lastSeen.Store(t.UnixNano())
}

// LastSeen returns when the bucket was last used.
func (b *Bucket) LastSeen() time.Time {
	return time.Unix(0, b.lastSeen.Load())
}

// Storage provides thread-safe in-memory storage for rate limit buckets.
// Buckets idle for longer than the TTL are dropped by a background sweep.
type Storage struct {
	buckets   sync.Map
	ttl       time.Duration
	cleanupMu sync.Mutex
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewStorage creates a new rate limit storage and starts the cleanup goroutine.
func NewStorage(ttl time.Duration) *Storage {
	s := &Storage{
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	s.startCleanup()
	return s
}

// Get retrieves a bucket by key. Returns nil if not found.
func (s *Storage) Get(key string) *Bucket {
	value, ok := s.buckets.Load(key)
	if !ok {
		return nil
	}
	bucket, ok := value.(*Bucket)
	if !ok {
		return nil
	}
	return bucket
}

// GetOrCreate returns key's bucket, storing create() when none exists.
func (s *Storage) GetOrCreate(key string, create func() *Bucket) *Bucket {
	if b := s.Get(key); b != nil {
		return b
	}
	value, _ := s.buckets.LoadOrStore(key, create())
	return value.(*Bucket)
}

// Set stores or updates a bucket by key.
func (s *Storage) Set(key string, bucket *Bucket) {
	s.buckets.Store(key, bucket)
}

// Delete removes a bucket by key.
func (s *Storage) Delete(key string) {
	s.buckets.Delete(key)
}

func (s *Storage) startCleanup() {
	interval := s.ttl / 12
	if interval < time.Second {
		interval = time.Second
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.cleanup(time.Now())
			case <-s.stopCh:
				return
			}
		}
	}()
}

// cleanup removes buckets not used since now-ttl.
func (s *Storage) cleanup(now time.Time) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	threshold := now.Add(-s.ttl)
	s.buckets.Range(func(key, value interface{}) bool {
		if bucket, ok := value.(*Bucket); ok && bucket.LastSeen().Before(threshold) {
			s.buckets.Delete(key)
		}
		return true
	})
	metrics.RateLimitBuckets.Set(float64(s.Count()))
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *Storage) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Count returns the number of buckets currently stored.
func (s *Storage) Count() int {
	count := 0
	s.buckets.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}
