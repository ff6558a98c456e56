package router

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository/sqlstore"
	"Lee_Social/internal/repository/sqlstore/dbtest"
	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

var testSecret = []byte("router-test-secret")

type apiTest struct {
	t      *testing.T
	engine *gin.Engine
	f      *dbtest.Fixture
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := sqlstore.NewExecutor(db,
		sqlstore.WithIsolation(sql.LevelDefault),
		sqlstore.WithBackoff(0),
		sqlstore.WithLogger(log),
	)
	rel := service.NewRelationService(db, exec, &dbtest.Seq{}, log)
	curated := service.NewCuratedAuthors(service.DBCuratedLoader(db), time.Hour, service.WithCuratedLogger(log))
	feed := service.NewFeedService(db, rel, curated, 20, log)
	return &apiTest{
		t:      t,
		engine: InitRouter(Deps{Relations: rel, Feed: feed, AccessSecret: testSecret, Logger: log}),
		f:      dbtest.NewFixture(t, db),
	}
}

func (a *apiTest) do(method, path string, user uint64, body any) (int, map[string]any) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		tok, err := pkg.GenerateAccess(user, 0, testSecret, time.Minute)
		if err != nil {
			a.t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	out := map[string]any{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		a.t.Fatalf("decode %s %s response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, out
}

func TestRelationRequiresToken(t *testing.T) {
	a := newAPITest(t)
	code, _ := a.do(http.MethodPost, "/api/relation/follow", 0, map[string]any{"target_id": 1})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestFollowAndStatusOverHTTP(t *testing.T) {
	a := newAPITest(t)
	u, v := a.f.User("u", false), a.f.User("v", false)

	code, body := a.do(http.MethodPost, "/api/relation/follow", u, map[string]any{"target_id": v})
	if code != http.StatusOK || body["state"] != "following" {
		t.Fatalf("follow: code=%d body=%v", code, body)
	}
	code, body = a.do(http.MethodGet, "/api/relation/status?user_id="+strconv.FormatUint(v, 10), u, nil)
	if code != http.StatusOK || body["following"] != true {
		t.Fatalf("status: code=%d body=%v", code, body)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	a := newAPITest(t)
	u, v, w := a.f.User("u", false), a.f.User("v", false), a.f.User("w", false)
	a.f.Block(w, u)

	code, body := a.do(http.MethodPost, "/api/relation/unfriend", u, map[string]any{"target_id": v})
	if code != http.StatusNotFound || body["kind"] != "not_found" {
		t.Fatalf("unfriend: code=%d body=%v", code, body)
	}
	code, body = a.do(http.MethodPost, "/api/relation/friend", u, map[string]any{"target_id": w})
	if code != http.StatusForbidden || body["kind"] != "blocked_relationship" {
		t.Fatalf("blocked: code=%d body=%v", code, body)
	}
	code, _ = a.do(http.MethodPost, "/api/relation/follow/resolve", u, map[string]any{"requester_id": v})
	if code != http.StatusBadRequest {
		t.Fatalf("missing accept: expected 400, got %d", code)
	}
	code, body = a.do(http.MethodGet, "/api/feed?page=-1", u, nil)
	if code != http.StatusBadRequest || body["kind"] != "invalid_argument" {
		t.Fatalf("negative page: code=%d body=%v", code, body)
	}
}

func TestListRejectsMalformedPaging(t *testing.T) {
	a := newAPITest(t)
	u := a.f.User("u", false)

	for _, path := range []string{
		"/api/relation/followings?cursor=abc",
		"/api/relation/followers?limit=ten",
		"/api/relation/friends?limit=-1",
		"/api/relation/requests/follow?cursor=-5",
	} {
		code, body := a.do(http.MethodGet, path, u, nil)
		if code != http.StatusBadRequest || body["kind"] != "invalid_argument" {
			t.Fatalf("%s: code=%d body=%v", path, code, body)
		}
	}
	code, body := a.do(http.MethodGet, "/api/relation/followings?cursor=0&limit=5", u, nil)
	if code != http.StatusOK {
		t.Fatalf("valid paging: code=%d body=%v", code, body)
	}
}

func TestFeedOverHTTP(t *testing.T) {
	a := newAPITest(t)
	u, v := a.f.User("u", false), a.f.User("v", false)
	a.f.Follow(u, v)
	a.f.Posts(v, 3, time.Minute)

	code, body := a.do(http.MethodGet, "/api/feed", u, nil)
	if code != http.StatusOK {
		t.Fatalf("feed: code=%d body=%v", code, body)
	}
	list, ok := body["list"].([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("expected 3 feed items, got %v", body["list"])
	}
	first := list[0].(map[string]any)
	if first["source_tier"] != float64(1) {
		t.Fatalf("expected direct tier, got %v", first["source_tier"])
	}
}
