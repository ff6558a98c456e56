package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg/errs"
	"Lee_Social/internal/repository/sqlstore/dbtest"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, maxRetries int) (*Executor, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	return NewExecutor(db,
		WithMaxRetries(maxRetries),
		WithIsolation(sql.LevelDefault),
		WithBackoff(0),
		WithLogger(discardLogger()),
	), db
}

func countUsers(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.User{}).Count(&n).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

func TestExecutorRetriesConflictThenSucceeds(t *testing.T) {
	exec, db := newTestExecutor(t, 5)

	attempts := 0
	err := exec.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if err := tx.Create(&model.User{ID: uint64(attempts), Username: fmt.Sprintf("u%d", attempts)}).Error; err != nil {
			return err
		}
		if attempts <= 3 {
			return fmt.Errorf("write skew: %w", ErrConflict)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}
	// 前三次的写入都已回滚
	if n := countUsers(t, db); n != 1 {
		t.Fatalf("expected 1 committed user, got %d", n)
	}
}

func TestExecutorExhaustsRetries(t *testing.T) {
	exec, _ := newTestExecutor(t, 3)

	attempts := 0
	err := exec.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return &mysqldrv.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	})
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
	if !errs.IsKind(err, errs.ServerError) {
		t.Fatalf("expected server error, got %v", err)
	}
	var myErr *mysqldrv.MySQLError
	if !errors.As(err, &myErr) || myErr.Number != 1213 {
		t.Fatalf("expected original mysql error in chain, got %v", err)
	}
}

func TestExecutorDoesNotRetryStoreFailure(t *testing.T) {
	exec, _ := newTestExecutor(t, 5)

	cause := errors.New("disk full")
	attempts := 0
	err := exec.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return cause
	})
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if !errs.IsKind(err, errs.ServerError) || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped server error, got %v", err)
	}
}

func TestExecutorPassesDomainErrorsThrough(t *testing.T) {
	exec, db := newTestExecutor(t, 5)

	attempts := 0
	err := exec.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if err := tx.Create(&model.User{ID: 1, Username: "a"}).Error; err != nil {
			return err
		}
		return errs.New(errs.BlockedRelationship, "blocked")
	})
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if !errs.IsKind(err, errs.BlockedRelationship) {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if n := countUsers(t, db); n != 0 {
		t.Fatalf("expected rollback, got %d users", n)
	}
}

func TestRunTxReturnsResult(t *testing.T) {
	exec, _ := newTestExecutor(t, 2)

	got, err := RunTx(context.Background(), exec, func(tx *gorm.DB) (string, error) {
		return "following", nil
	})
	if err != nil {
		t.Fatalf("run tx: %v", err)
	}
	if got != "following" {
		t.Fatalf("expected result to pass through, got %q", got)
	}
}

func TestRunBatchIsAllOrNothing(t *testing.T) {
	exec, db := newTestExecutor(t, 2)
	ctx := context.Background()

	createUser := func(id uint64) Op {
		return func(tx *gorm.DB) (any, error) {
			u := &model.User{ID: id, Username: fmt.Sprintf("u%d", id)}
			return u.ID, tx.Create(u).Error
		}
	}

	results, err := exec.RunBatch(ctx, createUser(1), createUser(2))
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 2 || results[0].(uint64) != 1 || results[1].(uint64) != 2 {
		t.Fatalf("unexpected results %v", results)
	}

	failing := func(tx *gorm.DB) (any, error) {
		return nil, errors.New("constraint check failed")
	}
	if _, err := exec.RunBatch(ctx, createUser(3), failing); err == nil {
		t.Fatal("expected batch error")
	}
	if n := countUsers(t, db); n != 2 {
		t.Fatalf("expected failed batch to roll back, got %d users", n)
	}
}

func TestExecutorStopsOnCanceledContext(t *testing.T) {
	db := dbtest.Open(t)
	exec := NewExecutor(db,
		WithMaxRetries(5),
		WithIsolation(sql.LevelDefault),
		WithBackoff(time.Hour),
		WithLogger(discardLogger()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := exec.Run(ctx, func(tx *gorm.DB) error {
		attempts++
		cancel()
		return ErrConflict
	})
	if attempts != 1 {
		t.Fatalf("expected retry loop to stop after cancel, got %d attempts", attempts)
	}
	if !errs.IsKind(err, errs.ServerError) {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestIsConflict(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", fmt.Errorf("wrapped: %w", ErrConflict), true},
		{"domain conflict", errs.New(errs.Conflict, "conflict"), true},
		{"duplicated key", gorm.ErrDuplicatedKey, true},
		{"mysql deadlock", &mysqldrv.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysqldrv.MySQLError{Number: 1205}, true},
		{"mysql duplicate", &mysqldrv.MySQLError{Number: 1062}, true},
		{"mysql access denied", &mysqldrv.MySQLError{Number: 1045}, false},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsConflict(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
