package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConcurrencyConfig holds submission concurrency limits
type ConcurrencyConfig struct {
	// MaxGlobalConcurrency caps concurrently running tasks across all tools
	MaxGlobalConcurrency int

	// DefaultToolConcurrency is the per-tool cap when none is set explicitly
	DefaultToolConcurrency int

	// RedisClient enables distributed locking and counters (optional)
	RedisClient *redis.Client

	// LockTTL is the TTL for Redis locks
	LockTTL time.Duration
}

// DefaultConcurrencyConfig returns a config with sensible defaults
func DefaultConcurrencyConfig() *ConcurrencyConfig {
	return &ConcurrencyConfig{
		MaxGlobalConcurrency:   100,
		DefaultToolConcurrency: 16,
		LockTTL:                30 * time.Second,
	}
}

// ConcurrencyManager tracks in-flight task counts globally and per tool.
// Simulation tools often hold per-seat licenses, so the per-tool cap is
// the one that actually protects shared infrastructure.
type ConcurrencyManager struct {
	config      *ConcurrencyConfig
	globalCount int
	toolCounts  map[string]int
	toolLimits  map[string]int
	mu          sync.RWMutex
	redis       *redis.Client
	ctx         context.Context
}

// NewConcurrencyManager creates a new concurrency manager
func NewConcurrencyManager(ctx context.Context, config *ConcurrencyConfig) *ConcurrencyManager {
	if config == nil {
		config = DefaultConcurrencyConfig()
	}

	return &ConcurrencyManager{
		config:     config,
		toolCounts: make(map[string]int),
		toolLimits: make(map[string]int),
		redis:      config.RedisClient,
		ctx:        ctx,
	}
}

// CanSchedule checks whether another task for the given tool fits under
// both the global and the per-tool cap
func (cm *ConcurrencyManager) CanSchedule(tool string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.globalCount >= cm.config.MaxGlobalConcurrency {
		return false
	}
	return cm.toolCounts[tool] < cm.toolLimitLocked(tool)
}

// Acquire reserves a slot for a task of the given tool
func (cm *ConcurrencyManager) Acquire(tool string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.globalCount >= cm.config.MaxGlobalConcurrency {
		return fmt.Errorf("global concurrency limit reached (%d)", cm.config.MaxGlobalConcurrency)
	}
	limit := cm.toolLimitLocked(tool)
	if cm.toolCounts[tool] >= limit {
		return fmt.Errorf("tool %s concurrency limit reached (%d/%d)", tool, cm.toolCounts[tool], limit)
	}

	cm.globalCount++
	cm.toolCounts[tool]++
	return nil
}

// Release frees a slot for a task of the given tool
func (cm *ConcurrencyManager) Release(tool string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.globalCount > 0 {
		cm.globalCount--
	}
	if cm.toolCounts[tool] > 0 {
		cm.toolCounts[tool]--
	}
}

// SetToolLimit sets the concurrency limit for a specific tool
func (cm *ConcurrencyManager) SetToolLimit(tool string, limit int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.toolLimits[tool] = limit
}

// ToolLimit returns the concurrency limit for a specific tool
func (cm *ConcurrencyManager) ToolLimit(tool string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.toolLimitLocked(tool)
}

func (cm *ConcurrencyManager) toolLimitLocked(tool string) int {
	if limit, exists := cm.toolLimits[tool]; exists {
		return limit
	}
	return cm.config.DefaultToolConcurrency
}

// GlobalCount returns the current global in-flight count
func (cm *ConcurrencyManager) GlobalCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.globalCount
}

// ToolCount returns the current in-flight count for a tool
func (cm *ConcurrencyManager) ToolCount(tool string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.toolCounts[tool]
}

// AcquireDistributedLock acquires a Redis lock shared across
// orchestrator instances, so a scheduled sweep fires exactly once even
// with several schedulers running
func (cm *ConcurrencyManager) AcquireDistributedLock(key string) (bool, error) {
	if cm.redis == nil {
		return false, fmt.Errorf("redis client not configured")
	}

	result, err := cm.redis.SetNX(cm.ctx, key, "locked", cm.config.LockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return result, nil
}

// ReleaseDistributedLock releases a distributed lock
func (cm *ConcurrencyManager) ReleaseDistributedLock(key string) error {
	if cm.redis == nil {
		return fmt.Errorf("redis client not configured")
	}

	if _, err := cm.redis.Del(cm.ctx, key).Result(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// IncrementDistributedCounter increments a shared in-flight counter
func (cm *ConcurrencyManager) IncrementDistributedCounter(key string) (int64, error) {
	if cm.redis == nil {
		return 0, fmt.Errorf("redis client not configured")
	}

	val, err := cm.redis.Incr(cm.ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	cm.redis.Expire(cm.ctx, key, 24*time.Hour)
	return val, nil
}

// DecrementDistributedCounter decrements a shared in-flight counter
func (cm *ConcurrencyManager) DecrementDistributedCounter(key string) (int64, error) {
	if cm.redis == nil {
		return 0, fmt.Errorf("redis client not configured")
	}

	val, err := cm.redis.Decr(cm.ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement counter: %w", err)
	}
	return val, nil
}

// GetDistributedCounter reads a shared counter; a missing key reads as 0
func (cm *ConcurrencyManager) GetDistributedCounter(key string) (int64, error) {
	if cm.redis == nil {
		return 0, fmt.Errorf("redis client not configured")
	}

	val, err := cm.redis.Get(cm.ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}
	return val, nil
}

// Reset clears all local counters
func (cm *ConcurrencyManager) Reset() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.globalCount = 0
	cm.toolCounts = make(map[string]int)
}
