package courses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"teach-quiz-service/internal/domain"
)

func TestClientIsEnrolled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/courses/course-1/validate/a@x.com":
			_ = json.NewEncoder(w).Encode(map[string]string{"email": "a@x.com", "full_name": "Ana Lima"})
		case "/courses/course-1/validate/b@x.com":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second, 0)
	ctx := context.Background()

	student, ok, err := client.IsEnrolled(ctx, "course-1", "a@x.com")
	if err != nil || !ok {
		t.Fatalf("expected enrolled, got ok=%v err=%v", ok, err)
	}
	if student.FullName != "Ana Lima" || student.Email != "a@x.com" {
		t.Fatalf("unexpected student %+v", student)
	}

	if _, ok, err := client.IsEnrolled(ctx, "course-1", "b@x.com"); err != nil || ok {
		t.Fatalf("expected not enrolled, got ok=%v err=%v", ok, err)
	}

	if _, _, err := client.IsEnrolled(ctx, "course-2", "a@x.com"); err == nil {
		t.Fatalf("expected error on unexpected status")
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"full_name": "Ana"})
	}))
	defer srv.Close()

	student, ok, err := NewClient(srv.URL, time.Second, 3).IsEnrolled(context.Background(), "c", "a@x.com")
	if err != nil || !ok || student.FullName != "Ana" {
		t.Fatalf("expected success after retries, got %+v ok=%v err=%v", student, ok, err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, _, err := NewClient(url, 200*time.Millisecond, 1).IsEnrolled(context.Background(), "c", "a@x.com"); err == nil {
		t.Fatalf("expected error for unreachable service")
	}
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	closed := NewRoster(false)
	closed.Enroll("course-1", domain.Student{Email: " A@X.com ", FullName: "Ana"})

	student, ok, _ := closed.IsEnrolled(ctx, "course-1", "a@x.com")
	if !ok || student.FullName != "Ana" {
		t.Fatalf("expected enrolled student, got %+v ok=%v", student, ok)
	}
	if _, ok, _ := closed.IsEnrolled(ctx, "course-2", "a@x.com"); ok {
		t.Fatalf("expected not enrolled in other course")
	}

	open := NewRoster(true)
	if _, ok, _ := open.IsEnrolled(ctx, "any", "z@x.com"); !ok {
		t.Fatalf("open roster should accept every email")
	}
}
