package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
	"github.com/synaptica-ai/symptomscan/pkg/serving/ranking"
)

// ResultCache keeps ranked predictions in Redis so repeated symptom sets skip
// the classifier.
type ResultCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewResultCache(client redis.Cmdable, prefix string, ttl time.Duration) *ResultCache {
	if prefix == "" {
		prefix = "inference"
	}
	return &ResultCache{client: client, prefix: prefix, ttl: ttl}
}

// Key identifies a recognized symptom set under one bundle fingerprint. The
// set is sorted first so input order does not matter.
func Key(prefix, fingerprint string, recognized []string) string {
	sorted := append([]string(nil), recognized...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x1f")))
	return fmt.Sprintf("%s:%s:%s", prefix, fingerprint, hex.EncodeToString(sum[:]))
}

func (c *ResultCache) Get(ctx context.Context, fingerprint string, recognized []string) ([]ranking.Prediction, bool, error) {
	data, err := c.client.Get(ctx, Key(c.prefix, fingerprint, recognized)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var preds []ranking.Prediction
	if err := json.Unmarshal(data, &preds); err != nil {
		return nil, false, fmt.Errorf("decode cached predictions: %w", err)
	}
	if len(preds) == 0 {
		return nil, false, nil
	}
	return preds, true, nil
}

func (c *ResultCache) Set(ctx context.Context, fingerprint string, recognized []string, preds []ranking.Prediction) error {
	data, err := json.Marshal(preds)
	if err != nil {
		return err
	}
	key := Key(c.prefix, fingerprint, recognized)
	logger.Log.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Debug("Caching predictions")
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
