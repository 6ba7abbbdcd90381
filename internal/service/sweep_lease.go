package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/pkg/cache"
)

const sweepLeaseKey = "edupacket:lifecycle:sweep"

// RedisSweepLease keeps concurrent sweeps from overlapping across instances.
type RedisSweepLease struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSweepLease builds the lease. With a nil client every acquisition
// succeeds and the sweep runs unguarded.
func NewRedisSweepLease(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSweepLease {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisSweepLease{client: client, ttl: ttl, logger: logger}
}

// TryAcquire implements sweepLease.
func (l *RedisSweepLease) TryAcquire(ctx context.Context) (func(), bool, error) {
	if l.client == nil {
		return func() {}, true, nil
	}
	lease, err := cache.Acquire(ctx, l.client, sweepLeaseKey, l.ttl)
	if err != nil {
		return nil, false, err
	}
	if lease == nil {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(ctx); err != nil {
			l.logger.Warn("failed to release sweep lease", zap.Error(err))
		}
	}
	return release, true, nil
}
