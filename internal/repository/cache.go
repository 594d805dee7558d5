// internal/repository/cache.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"homewise/internal/common/logger"
	"homewise/internal/models"
)

const (
	machineKeyPrefix = "homewise:machine:"
	machineListKey   = "homewise:machines"
)

// CachedMachineRepository is a read-through Redis cache in front of a MachineRepository.
// Cache failures are logged and fall back to the underlying repository.
type CachedMachineRepository struct {
	next   MachineRepository
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedMachineRepository(next MachineRepository, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedMachineRepository {
	return &CachedMachineRepository{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"repository": "redis-cache"}),
	}
}

func (c *CachedMachineRepository) ListMachines(ctx context.Context) ([]models.Machine, error) {
	var cached []models.Machine
	if c.get(ctx, machineListKey, &cached) {
		return cached, nil
	}

	machines, err := c.next.ListMachines(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, machineListKey, machines)
	return machines, nil
}

func (c *CachedMachineRepository) FindMachine(ctx context.Context, id string) (*models.Machine, error) {
	key := machineKeyPrefix + id
	var cached models.Machine
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}

	m, err := c.next.FindMachine(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, m)
	return m, nil
}

// InsertMachine writes through and drops the cached list.
func (c *CachedMachineRepository) InsertMachine(ctx context.Context, m *models.Machine) (*models.Machine, error) {
	stored, err := c.next.InsertMachine(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := c.redis.Del(ctx, machineListKey).Err(); err != nil {
		c.logger.Warn("Cache invalidation failed", map[string]interface{}{"key": machineListKey, "error": err.Error()})
	}
	return stored, nil
}

func (c *CachedMachineRepository) get(ctx context.Context, key string, dest interface{}) bool {
	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("Cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	return true
}

func (c *CachedMachineRepository) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// cachedStore combines a cached machine repository with the uncached rest of a Store.
type cachedStore struct {
	*CachedMachineRepository
	tasks TaskRepository
	ping  func(ctx context.Context) error
}

// WithCache fronts the machine side of store with Redis.
func WithCache(store Store, client *redis.Client, ttl time.Duration, log logger.Logger) Store {
	return &cachedStore{
		CachedMachineRepository: NewCachedMachineRepository(store, client, ttl, log),
		tasks:                   store,
		ping: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		},
	}
}

func (s *cachedStore) ListTasks(ctx context.Context) ([]models.MaintenanceTask, error) {
	return s.tasks.ListTasks(ctx)
}

func (s *cachedStore) FindTask(ctx context.Context, id string) (*models.MaintenanceTask, error) {
	return s.tasks.FindTask(ctx, id)
}

func (s *cachedStore) InsertTask(ctx context.Context, t *models.MaintenanceTask) (*models.MaintenanceTask, error) {
	return s.tasks.InsertTask(ctx, t)
}

func (s *cachedStore) MarkNotified(ctx context.Context, id string) error {
	return s.tasks.MarkNotified(ctx, id)
}

func (s *cachedStore) Ping(ctx context.Context) error {
	return s.ping(ctx)
}
