package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/safeher/apiserver/internal/logging"
	"github.com/safeher/apiserver/types"
)

const statsCacheKey = "admin:stats"

// Cache is a byte-valued cache with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// StatsService serves the admin dashboard figures.
type StatsService struct {
	repo  StatsRepository
	cache Cache
	ttl   time.Duration
}

// NewStatsService builds the service. cache may be nil, in which case every
// call reads the database.
func NewStatsService(repo StatsRepository, cache Cache, ttl time.Duration) *StatsService {
	return &StatsService{repo: repo, cache: cache, ttl: ttl}
}

// Stats returns report and user counts. A cached snapshot up to ttl old may
// be served.
func (s *StatsService) Stats(ctx context.Context, actor types.Actor) (types.Stats, error) {
	if !actor.IsAdmin() {
		return types.Stats{}, ErrForbidden
	}

	log := logging.Logger.WithFields(logrus.Fields{"source": "stats", "key": statsCacheKey})
	if s.cache != nil && s.ttl > 0 {
		raw, ok, err := s.cache.Get(ctx, statsCacheKey)
		switch {
		case err != nil:
			log.WithError(err).Warn("stats cache read failed")
		case ok:
			var cached types.Stats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			log.Warn("discarding undecodable stats cache entry")
		}
	}

	stats, err := s.repo.Snapshot(ctx)
	if err != nil {
		return types.Stats{}, err
	}

	if s.cache != nil && s.ttl > 0 {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, raw, s.ttl); err != nil {
				log.WithError(err).Warn("stats cache write failed")
			}
		}
	}
	return stats, nil
}
