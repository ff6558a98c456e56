package service

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"Lee_Social/internal/repository/sqlstore"
	"Lee_Social/internal/repository/sqlstore/dbtest"

	"gorm.io/gorm"
)

type harness struct {
	db   *gorm.DB
	f    *dbtest.Fixture
	rel  *RelationService
	feed *FeedService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, DefaultFeedPageSize, nil)
}

// newHarnessWith curated 为空时从 curated_authors 表加载
func newHarnessWith(t *testing.T, pageSize int, curated CuratedSource) *harness {
	t.Helper()
	db := dbtest.Open(t)
	log := discardLogger()
	exec := sqlstore.NewExecutor(db,
		sqlstore.WithIsolation(sql.LevelDefault),
		sqlstore.WithBackoff(0),
		sqlstore.WithLogger(log),
	)
	rel := NewRelationService(db, exec, &dbtest.Seq{}, log)
	if curated == nil {
		curated = NewCuratedAuthors(DBCuratedLoader(db), time.Hour, WithCuratedLogger(log))
	}
	return &harness{
		db:   db,
		f:    dbtest.NewFixture(t, db),
		rel:  rel,
		feed: NewFeedService(db, rel, curated, pageSize, log),
	}
}
