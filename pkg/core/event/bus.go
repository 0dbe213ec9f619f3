package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicAll 全量事件主题（对外导出），订阅方可在此收到所有事件
const TopicAll = "events.all"

// Bus 基于Watermill gochannel的进程内事件总线（对外导出）
// 实现Notifier接口：每条事件发布到其类型主题和全量主题
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewBus 创建事件总线（对外导出）
func NewBus(debug bool) *Bus {
	logger := watermill.NewStdLogger(debug, false)

	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	return &Bus{pubsub: pubsub, logger: logger}
}

// Notify 实现Notifier接口
// 序列化或发布失败只记录日志，不打断调度循环
func (b *Bus) Notify(ctx context.Context, e *Event) {
	if err := b.publish(e); err != nil {
		log.Printf("⚠️ 发布事件失败: %v", err)
	}
}

// publish 序列化事件并发布到类型主题与全量主题（内部方法）
func (b *Bus) publish(e *Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set("event_type", string(e.Type))
	msg.Metadata.Set("workflow_id", e.WorkflowID)
	msg.Metadata.Set("task_id", e.TaskID)
	msg.Metadata.Set("timestamp", e.Timestamp.Format(time.RFC3339Nano))

	if err := b.pubsub.Publish(string(e.Type), msg); err != nil {
		return fmt.Errorf("发布到主题 %s 失败: %w", e.Type, err)
	}
	if err := b.pubsub.Publish(TopicAll, msg); err != nil {
		return fmt.Errorf("发布到主题 %s 失败: %w", TopicAll, err)
	}
	return nil
}

// Subscribe 订阅指定类型的事件（对外导出）
// ctx取消时订阅通道关闭
func (b *Bus) Subscribe(ctx context.Context, eventType Type) (<-chan *message.Message, error) {
	msgs, err := b.pubsub.Subscribe(ctx, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("订阅主题 %s 失败: %w", eventType, err)
	}
	return msgs, nil
}

// SubscribeAll 订阅全量事件（对外导出）
func (b *Bus) SubscribeAll(ctx context.Context) (<-chan *message.Message, error) {
	msgs, err := b.pubsub.Subscribe(ctx, TopicAll)
	if err != nil {
		return nil, fmt.Errorf("订阅主题 %s 失败: %w", TopicAll, err)
	}
	return msgs, nil
}

// Close 关闭事件总线（对外导出）
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// Decode 反序列化事件消息（对外导出）
func Decode(msg *message.Message) (*Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return nil, fmt.Errorf("反序列化事件失败: %w", err)
	}
	return &e, nil
}
