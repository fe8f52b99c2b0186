package predictor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
	"github.com/synaptica-ai/symptomscan/pkg/observability/metrics"
)

// ErrNoBundle is returned while no model is loaded.
var ErrNoBundle = errors.New("no model loaded")

var errNoSource = errors.New("registry has no artifact source")

// Registry publishes the active bundle. Readers get a consistent snapshot via
// Current; Reload swaps in a new bundle only after it loaded completely.
type Registry struct {
	current atomic.Pointer[Bundle]
	source  *Source

	mu    sync.Mutex
	stamp string
}

// NewRegistry loads src once and fails if that load fails.
func NewRegistry(src Source) (*Registry, error) {
	r := &Registry{source: &src}
	if _, err := r.Reload(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// NewStaticRegistry serves b until Close. It cannot reload.
func NewStaticRegistry(b *Bundle) *Registry {
	r := &Registry{}
	r.current.Store(b)
	return r
}

func (r *Registry) Current() (*Bundle, error) {
	b := r.current.Load()
	if b == nil {
		return nil, ErrNoBundle
	}
	return b, nil
}

// Reload reads the artifacts again. On failure the previous bundle stays
// active and the error is returned. A context cancelled before the swap
// leaves the registry untouched.
func (r *Registry) Reload(ctx context.Context) (*Bundle, error) {
	if r.source == nil {
		return nil, errNoSource
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp, err := r.source.Stamp()
	if err != nil {
		return nil, err
	}
	b, err := r.source.Load()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.current.Store(b)
	r.stamp = stamp
	logger.WithFields(logrus.Fields{
		"version":     b.Version,
		"algorithm":   b.Algorithm,
		"fingerprint": b.Fingerprint,
		"diseases":    b.Catalog.Len(),
		"symptoms":    b.Vocabulary.Size(),
	}).Info("Model bundle loaded")
	return b, nil
}

// Watch polls the artifact files and reloads when they change. It returns
// when ctx is done.
func (r *Registry) Watch(ctx context.Context, interval time.Duration) {
	if r.source == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.changed() {
				continue
			}
			_, err := r.Reload(ctx)
			if ctx.Err() != nil {
				return
			}
			metrics.ObserveReload(err == nil)
			if err != nil {
				logger.WithField("error", err).Warn("Model reload failed, keeping current bundle")
				r.markSeen()
			}
		}
	}
}

func (r *Registry) changed() bool {
	stamp, err := r.source.Stamp()
	if err != nil {
		logger.WithField("error", err).Warn("Failed to stat model artifacts")
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return stamp != r.stamp
}

// markSeen records the current stamp so a broken artifact is not retried on
// every tick.
func (r *Registry) markSeen() {
	stamp, err := r.source.Stamp()
	if err != nil {
		return
	}
	r.mu.Lock()
	r.stamp = stamp
	r.mu.Unlock()
}

// Close releases the bundle. Later calls to Current return ErrNoBundle.
func (r *Registry) Close() {
	r.current.Store(nil)
}
