package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ServerError},
		{"domain", New(NotFound, "user not found"), NotFound},
		{"wrapped", fmt.Errorf("request follow: %w", New(BlockedRelationship, "blocked")), BlockedRelationship},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(NotFound, "request missing", errors.New("record not found")))
	if !errors.Is(err, New(NotFound, "")) {
		t.Fatal("expected errors.Is to match by kind")
	}
	if errors.Is(err, New(InvalidArgument, "")) {
		t.Fatal("expected different kind not to match")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := Wrap(ServerError, "server error", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "server error: driver: bad connection" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestIsClient(t *testing.T) {
	if !IsClient(New(InvalidArgument, "bad id")) {
		t.Fatal("invalid argument should be a client error")
	}
	if IsClient(New(ServerError, "db down")) {
		t.Fatal("server error should not be a client error")
	}
	if IsClient(errors.New("raw")) {
		t.Fatal("raw error should not be a client error")
	}
}

func TestHTTPStatus(t *testing.T) {
	want := map[Kind]int{
		NotFound:            http.StatusNotFound,
		BlockedRelationship: http.StatusForbidden,
		InvalidArgument:     http.StatusBadRequest,
		Conflict:            http.StatusConflict,
		ServerError:         http.StatusInternalServerError,
	}
	for kind, status := range want {
		if got := HTTPStatus(kind); got != status {
			t.Fatalf("%s: expected %d, got %d", kind, status, got)
		}
	}
}
