package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geekinsanemx/sms-gateway/internal/model"
)

// RedisLog stores one JSON snapshot per message under msg:<id>, expiring with
// the retention window so Redis never outlives the store's own memory.
type RedisLog struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLog(rdb *redis.Client, ttl time.Duration) *RedisLog {
	return &RedisLog{rdb: rdb, ttl: ttl}
}

type outcomeValue struct {
	Status         string     `json:"status"`
	To             string     `json:"to"`
	Requester      string     `json:"requester"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	ReplyText      *string    `json:"replyText,omitempty"`
	ElapsedSeconds *int64     `json:"elapsedSeconds,omitempty"`
	FailureCode    string     `json:"failureCode,omitempty"`
	FailureDetail  string     `json:"failureDetail,omitempty"`
	RecordedAt     time.Time  `json:"recordedAt"`
}

func (l *RedisLog) Record(ctx context.Context, m model.Message) error {
	key := fmt.Sprintf("msg:%s", m.ID)
	val := outcomeValue{
		Status:         string(m.Status),
		To:             m.ToNumber,
		Requester:      m.Requester,
		SentAt:         m.SentAt,
		ReplyText:      m.ReplyText,
		ElapsedSeconds: m.ElapsedSeconds,
		FailureCode:    string(m.FailureCode),
		FailureDetail:  m.FailureDetail,
		RecordedAt:     time.Now().UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return l.rdb.Set(ctx, key, b, l.ttl).Err()
}
