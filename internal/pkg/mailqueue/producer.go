package mailqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// DefaultStream 是邮件事件的默认 Stream 名称。
const DefaultStream = "aitutor:queue:email"

// maxStreamLen 限制 Stream 长度，防止消费者长时间离线时无限增长。
const maxStreamLen = 100000

// Producer 将事件发布到 Redis Streams，投递为 fire-and-forget 语义：
// 发布失败只记录日志，由调用方决定是否关心返回的错误。
type Producer struct {
	rdb    *redis.Client
	logger *slog.Logger
	stream string
}

// NewProducer 创建事件生产者。
func NewProducer(rdb *redis.Client, logger *slog.Logger, stream string) *Producer {
	if stream == "" {
		stream = DefaultStream
	}
	return &Producer{rdb: rdb, logger: logger, stream: stream}
}

// Send 发布一条事件消息。
//
// 参数:
//   - ctx: 上下文
//   - eventType: 事件类型（如 "email.send"）
//   - payload: 事件载荷，将被序列化为 JSON
func (p *Producer) Send(ctx context.Context, eventType string, payload any) error {
	if eventType == "" {
		return fmt.Errorf("event type is empty")
	}

	msg, err := newMessage(eventType, payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	msgID, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd failed: %w", err)
	}

	metrics.EmailJobsTotal.WithLabelValues("published").Inc()
	p.logger.Debug("event published",
		slog.String("stream", p.stream),
		slog.String("event_type", eventType),
		slog.String("msg_id", msgID))
	return nil
}

// Len 返回 Stream 中的消息数量。
func (p *Producer) Len(ctx context.Context) (int64, error) {
	length, err := p.rdb.XLen(ctx, p.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("xlen failed: %w", err)
	}
	return length, nil
}
