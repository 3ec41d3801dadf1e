package mailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// Handler 处理一条事件消息。返回错误会触发重试，超过最大次数后进入死信。
type Handler func(ctx context.Context, msg *Message) error

// Consumer 以消费者组的方式从 Redis Streams 读取事件消息。
//
// 读取顺序：先用 XAUTOCLAIM 接管超时未确认的 pending 消息，再用
// XREADGROUP 读取新消息。处理成功 XACK；失败按重试计数重入队，
// 超过 maxRetry 后写入死信 Stream。
type Consumer struct {
	rdb          *redis.Client
	logger       *slog.Logger
	stream       string
	group        string
	consumerID   string
	blockTime    time.Duration
	batchSize    int64
	pendingIdle  time.Duration
	pendingStart string
	dlqStream    string
	maxRetry     int
}

// ConsumerOption 消费者配置选项。
type ConsumerOption func(*Consumer)

// WithBlockTime 设置读取新消息时的阻塞等待时间。
func WithBlockTime(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.blockTime = d }
}

// WithBatchSize 设置每次读取的消息数量。
func WithBatchSize(size int64) ConsumerOption {
	return func(c *Consumer) { c.batchSize = size }
}

// WithMaxRetry 设置最大重试次数。
func WithMaxRetry(maxRetry int) ConsumerOption {
	return func(c *Consumer) { c.maxRetry = maxRetry }
}

// NewConsumer 创建消费者并确保消费者组存在。
func NewConsumer(rdb *redis.Client, logger *slog.Logger, stream, group, consumerID string, opts ...ConsumerOption) (*Consumer, error) {
	if group == "" {
		return nil, fmt.Errorf("group name is required")
	}
	if stream == "" {
		stream = DefaultStream
	}
	if consumerID == "" {
		consumerID = fmt.Sprintf("mailer-%d", time.Now().UnixNano())
	}

	c := &Consumer{
		rdb:          rdb,
		logger:       logger,
		stream:       stream,
		group:        group,
		consumerID:   consumerID,
		blockTime:    1 * time.Second,
		batchSize:    10,
		pendingIdle:  1 * time.Minute,
		pendingStart: "0-0",
		dlqStream:    stream + ":dlq",
		maxRetry:     3,
	}
	for _, opt := range opts {
		opt(c)
	}

	err := rdb.XGroupCreateMkStream(context.Background(), c.stream, c.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	logger.Info("mail consumer ready",
		slog.String("stream", c.stream),
		slog.String("group", c.group),
		slog.String("consumer_id", c.consumerID))
	return c, nil
}

// Run 循环消费直到 ctx 取消。
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := c.read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.logger.Error("read messages failed", slog.String("error", err.Error()))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range batch {
			if err := handle(ctx, m.Message); err != nil {
				c.logger.Warn("handle message failed",
					slog.String("msg_id", m.ID),
					slog.String("event_type", m.Message.EventType),
					slog.String("error", err.Error()))
				if failErr := c.handleFailure(ctx, m, err); failErr != nil {
					c.logger.Error("handle failure failed", slog.String("msg_id", m.ID), slog.String("error", failErr.Error()))
				}
				continue
			}
			if err := c.ack(ctx, m.ID); err != nil {
				c.logger.Error("ack failed", slog.String("msg_id", m.ID), slog.String("error", err.Error()))
			}
		}
	}
}

// messageWithID 关联 Stream 消息 ID 与解析后的消息。
type messageWithID struct {
	ID      string
	Message *Message
}

func (c *Consumer) read(ctx context.Context) ([]*messageWithID, error) {
	pending, err := c.readPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return pending, nil
	}
	return c.readNew(ctx)
}

func (c *Consumer) readPending(ctx context.Context) ([]*messageWithID, error) {
	messages, nextStart, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumerID,
		MinIdle:  c.pendingIdle,
		Start:    c.pendingStart,
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xautoclaim failed: %w", err)
	}
	if nextStart != "" {
		c.pendingStart = nextStart
	}
	return c.parseMessages(ctx, messages), nil
}

func (c *Consumer) readNew(ctx context.Context) ([]*messageWithID, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumerID,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockTime,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup failed: %w", err)
	}

	var messages []redis.XMessage
	for _, stream := range streams {
		messages = append(messages, stream.Messages...)
	}
	return c.parseMessages(ctx, messages), nil
}

func (c *Consumer) parseMessages(ctx context.Context, messages []redis.XMessage) []*messageWithID {
	parsed := make([]*messageWithID, 0, len(messages))
	for _, msg := range messages {
		data, ok := msg.Values["data"].(string)
		if !ok || data == "" {
			c.logger.Warn("invalid message format", slog.String("msg_id", msg.ID))
			c.dropPoison(ctx, msg.ID, fmt.Sprintf("%v", msg.Values["data"]), "invalid message format")
			continue
		}
		m, err := parseMessage(data)
		if err != nil {
			c.logger.Error("parse message failed", slog.String("msg_id", msg.ID), slog.String("error", err.Error()))
			c.dropPoison(ctx, msg.ID, data, err.Error())
			continue
		}
		parsed = append(parsed, &messageWithID{ID: msg.ID, Message: m})
	}
	return parsed
}

func (c *Consumer) ack(ctx context.Context, msgID string) error {
	if err := c.rdb.XAck(ctx, c.stream, c.group, msgID).Err(); err != nil {
		return fmt.Errorf("xack failed: %w", err)
	}
	return nil
}

// handleFailure 根据重试次数重入队或写入死信。
func (c *Consumer) handleFailure(ctx context.Context, m *messageWithID, cause error) error {
	m.Message.Retry++
	if m.Message.Retry > c.maxRetry {
		c.deadLetter(ctx, m.ID, string(mustMarshal(m.Message)), cause.Error())
		return c.ack(ctx, m.ID)
	}

	data, err := json.Marshal(m.Message)
	if err != nil {
		return fmt.Errorf("marshal retry message: %w", err)
	}
	if err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("requeue message: %w", err)
	}
	return c.ack(ctx, m.ID)
}

// deadLetter 将消息写入死信 Stream，不做 ack。
func (c *Consumer) deadLetter(ctx context.Context, msgID, payload, reason string) {
	metrics.EmailJobsTotal.WithLabelValues("dlq").Inc()
	err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.dlqStream,
		Values: map[string]interface{}{
			"original_id": msgID,
			"payload":     payload,
			"reason":      reason,
			"failed_at":   time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		c.logger.Error("publish dead letter failed", slog.String("msg_id", msgID), slog.String("error", err.Error()))
	}
}

func (c *Consumer) dropPoison(ctx context.Context, msgID, payload, reason string) {
	c.deadLetter(ctx, msgID, payload, reason)
	if err := c.ack(ctx, msgID); err != nil {
		c.logger.Error("ack poison message failed", slog.String("msg_id", msgID), slog.String("error", err.Error()))
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
