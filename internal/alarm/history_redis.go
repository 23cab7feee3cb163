package alarm

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/pkg/logger"
)

// RedisHistory keeps dedup state in Redis sets so it survives process
// restarts. SADD's added-count makes check-and-record atomic per
// fingerprint without client-side locking.
type RedisHistory struct {
	client *redis.Client
}

func NewRedisHistory(host string, port int, password string, db int) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis alarm history initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
	)

	return &RedisHistory{client: client}, nil
}

func (h *RedisHistory) Close() error {
	return h.client.Close()
}

func (h *RedisHistory) FilterNew(ctx context.Context, tableName string, alarmID int64, fingerprints []string) ([]string, error) {
	key := historyRedisKey(tableName, alarmID)

	var fresh []string
	for _, fp := range fingerprints {
		added, err := h.client.SAdd(ctx, key, fp).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to record fingerprint: %w", err)
		}
		if added == 1 {
			fresh = append(fresh, fp)
		}
	}

	return fresh, nil
}

func (h *RedisHistory) Seen(ctx context.Context, tableName string, alarmID int64) (map[string]struct{}, error) {
	members, err := h.client.SMembers(ctx, historyRedisKey(tableName, alarmID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load fingerprints: %w", err)
	}

	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		seen[m] = struct{}{}
	}
	return seen, nil
}

func (h *RedisHistory) Record(ctx context.Context, tableName string, alarmID int64, fingerprints []string) error {
	if len(fingerprints) == 0 {
		return nil
	}

	members := make([]interface{}, len(fingerprints))
	for i, fp := range fingerprints {
		members[i] = fp
	}

	if err := h.client.SAdd(ctx, historyRedisKey(tableName, alarmID), members...).Err(); err != nil {
		return fmt.Errorf("failed to record fingerprints: %w", err)
	}
	return nil
}

func (h *RedisHistory) Clear(ctx context.Context, filter ClearFilter) error {
	pattern := "alarmhist:*"
	switch {
	case filter.TableName != "" && filter.AlarmID != 0:
		pattern = historyRedisKey(filter.TableName, filter.AlarmID)
	case filter.TableName != "":
		pattern = fmt.Sprintf("alarmhist:%s:*", filter.TableName)
	case filter.AlarmID != 0:
		pattern = fmt.Sprintf("alarmhist:*:%d", filter.AlarmID)
	}

	iter := h.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := h.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete history key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan history keys: %w", err)
	}

	logger.Info("Alarm history cleared",
		zap.String("table", filter.TableName),
		zap.Int64("alarm_id", filter.AlarmID),
	)
	return nil
}

var _ History = (*RedisHistory)(nil)
