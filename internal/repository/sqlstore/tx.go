package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Lee_Social/internal/pkg/errs"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	DefaultMaxRetries = 5
	defaultBackoff    = 10 * time.Millisecond
)

// Executor 以最高隔离级别执行一组写操作，冲突时整体重试
type Executor struct {
	db          *gorm.DB
	maxAttempts int
	isolation   sql.IsolationLevel
	backoff     time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
}

type ExecutorOption func(*Executor)

// WithMaxRetries 总尝试次数上限（含第一次）
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithIsolation 嵌入式测试库不支持 SERIALIZABLE 时使用
func WithIsolation(level sql.IsolationLevel) ExecutorOption {
	return func(e *Executor) { e.isolation = level }
}

// WithBackoff 第 n 次重试前等待 n*d，0 表示立即重试
func WithBackoff(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.backoff = d }
}

func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewExecutor(db *gorm.DB, opts ...ExecutorOption) *Executor {
	e := &Executor{
		db:          db,
		maxAttempts: DefaultMaxRetries,
		isolation:   sql.LevelSerializable,
		backoff:     defaultBackoff,
		logger:      slog.Default(),
		tracer:      otel.Tracer("Lee_Social/sqlstore"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run 在一个事务里执行 fn。fn 可能被执行多次，每次都必须从当前状态重新读取。
// 领域错误原样返回；冲突重试耗尽或其他存储错误统一包装为 ServerError。
func (e *Executor) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, span := e.tracer.Start(ctx, "sqlstore.Executor.Run")
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err := e.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: e.isolation})
		if err == nil {
			span.SetAttributes(attribute.Int("tx.attempts", attempt))
			return nil
		}
		if passThrough(err) {
			return err
		}
		if !IsConflict(err) {
			e.logger.ErrorContext(ctx, "transaction failed", "attempt", attempt, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "transaction failed")
			return errs.Wrap(errs.ServerError, "server error", err)
		}

		lastErr = err
		span.AddEvent("tx.conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
		if attempt == e.maxAttempts {
			break
		}
		e.logger.WarnContext(ctx, "transaction conflict, retrying",
			"attempt", attempt, "max_attempts", e.maxAttempts, "error", err)
		if err := e.wait(ctx, attempt); err != nil {
			e.logger.ErrorContext(ctx, "transaction retry aborted", "attempt", attempt, "error", err)
			return errs.Wrap(errs.ServerError, "transaction retry aborted", err)
		}
	}

	e.logger.ErrorContext(ctx, "transaction conflict retries exhausted",
		"attempts", e.maxAttempts, "error", lastErr)
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "conflict retries exhausted")
	return errs.Wrap(errs.ServerError,
		fmt.Sprintf("transaction conflict persisted after %d attempts", e.maxAttempts), lastErr)
}

// passThrough 非冲突类的领域错误不重试也不再包装
func passThrough(err error) bool {
	var de *errs.Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Kind != errs.Conflict
}

func (e *Executor) wait(ctx context.Context, attempt int) error {
	if e.backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.backoff * time.Duration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunTx 带返回值的 Run，成功时原样返回 fn 的结果
func RunTx[T any](ctx context.Context, e *Executor, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var out T
	err := e.Run(ctx, func(tx *gorm.DB) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Op 批量执行中的单个写操作
type Op func(tx *gorm.DB) (any, error)

// RunBatch 按顺序在同一事务里执行 ops，返回每个操作的结果
func (e *Executor) RunBatch(ctx context.Context, ops ...Op) ([]any, error) {
	return RunTx(ctx, e, func(tx *gorm.DB) ([]any, error) {
		results := make([]any, 0, len(ops))
		for i, op := range ops {
			v, err := op(tx)
			if err != nil {
				return nil, fmt.Errorf("op %d: %w", i, err)
			}
			results = append(results, v)
		}
		return results, nil
	})
}
