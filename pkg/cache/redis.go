package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"quizmaster/internal/models"

	"github.com/go-redis/redis/v8"
)

const examKeyPrefix = "exams:"

// RedisCache fronts the published-exam read path. Every mutating catalog
// operation calls InvalidateExams; stale reads only ever cost latency, not
// correctness.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
		ttl:    time.Hour,
	}
}

func (c *RedisCache) SetPublishedExams(key string, exams []models.Exam) {
	data, err := json.Marshal(exams)
	if err != nil {
		return
	}
	if err := c.client.Set(c.ctx, examKeyPrefix+key, data, c.ttl).Err(); err != nil {
		log.Printf("Cache set failed for %s: %v", key, err)
	}
}

func (c *RedisCache) GetPublishedExams(key string) ([]models.Exam, bool) {
	data, err := c.client.Get(c.ctx, examKeyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var exams []models.Exam
	if err := json.Unmarshal(data, &exams); err != nil {
		return nil, false
	}
	return exams, true
}

// InvalidateExams drops every cached exam listing.
func (c *RedisCache) InvalidateExams() {
	iter := c.client.Scan(c.ctx, 0, examKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(c.ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("Cache scan failed: %v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(c.ctx, keys...).Err(); err != nil {
		log.Printf("Cache invalidation failed: %v", err)
	}
}
