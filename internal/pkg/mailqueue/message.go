package mailqueue

import (
	"encoding/json"
	"time"
)

// EventEmailSend 是邮件投递事件类型。
const EventEmailSend = "email.send"

// Message 表示队列中的一条事件消息。
type Message struct {
	EventType string          `json:"event_type"` // 事件类型，如 "email.send"
	Payload   json.RawMessage `json:"payload"`    // 事件载荷
	Timestamp time.Time       `json:"timestamp"`  // 消息创建时间
	Retry     int             `json:"retry"`      // 重试次数
}

// EmailPayload 是 email.send 事件的载荷。
type EmailPayload struct {
	To         string            `json:"to"`
	Subject    string            `json:"subject"`
	TemplateID string            `json:"templateId"`
	Data       map[string]string `json:"data"`
}

func newMessage(eventType string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		EventType: eventType,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// parseMessage 解析 Redis Stream 中的消息体。
func parseMessage(data string) (*Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
