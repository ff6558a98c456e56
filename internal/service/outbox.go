package service

import (
	"context"
	"log/slog"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository/sqlstore"

	"gorm.io/gorm"
)

// Sender 投递单条关系事件
type Sender func(ctx context.Context, ob *model.SocialOutbox) error

// OutboxRelayer 轮询 outbox 表，把关系事件异步投递到消息系统
type OutboxRelayer struct {
	repo      *sqlstore.OutboxRepository
	batchSize int
	interval  time.Duration
	sender    Sender
	logger    *slog.Logger
}

func NewOutboxRelayer(db *gorm.DB, sender Sender, interval time.Duration, logger *slog.Logger) *OutboxRelayer {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxRelayer{
		repo:      &sqlstore.OutboxRepository{DB: db},
		batchSize: 200,
		interval:  interval,
		sender:    sender,
		logger:    logger,
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

// drainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) drainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize)
	if err != nil {
		r.logger.ErrorContext(ctx, "outbox query failed", "error", err)
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err = r.sender(ctx, &ob); err != nil {
			r.logger.WarnContext(ctx, "outbox send failed",
				"id", ob.ID, "type", ob.EventType, "retry", ob.Retry+1, "error", err)
			if err := r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				r.logger.ErrorContext(ctx, "outbox retry update failed", "id", ob.ID, "error", err)
			}
			continue
		}
		if err := r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			r.logger.ErrorContext(ctx, "outbox success update failed", "id", ob.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// LogSender 本地开发用，只打日志
func LogSender(logger *slog.Logger) Sender {
	return func(ctx context.Context, ob *model.SocialOutbox) error {
		logger.InfoContext(ctx, "outbox event",
			"type", ob.EventType, "actor", ob.ActorID, "target", ob.TargetID, "payload", ob.Payload)
		return nil
	}
}

// KafkaSender 以 actor 为 key，同一用户的事件进入同一分区
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.SocialOutbox) error {
		return p.Send(ctx, pkg.MakeKeyFromID(ob.ActorID), []byte(ob.Payload))
	}
}

func NatsSender(p *pkg.NatsPublisher) Sender {
	return func(ctx context.Context, ob *model.SocialOutbox) error {
		return p.Send(ctx, ob.EventType, []byte(ob.Payload))
	}
}
