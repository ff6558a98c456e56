package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsPublisher 关系事件的 NATS 投递端
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNatsPublisher(url, subject string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("lee-social-outbox"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NatsPublisher{conn: nc, subject: subject}, nil
}

// Send subject 形如 social.relation.followed，消费方可按事件类型订阅
func (p *NatsPublisher) Send(ctx context.Context, eventType string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject+"."+eventType, value); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	// FlushWithContext 要求 ctx 带截止时间
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *NatsPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
