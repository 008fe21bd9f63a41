package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/educhat-backend/internal/pkg/errors"
	"github.com/yungbote/educhat-backend/internal/platform/apierr"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func TestHTTPClientErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, pkgerrors.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, pkgerrors.ErrUnauthorized},
		{"not found", http.StatusNotFound, pkgerrors.ErrNotFound},
		{"bad request", http.StatusBadRequest, pkgerrors.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "nope", "code": "TEST"},
				})
			}))
			defer srv.Close()

			client := NewHTTPClient(mustTestLogger(t), srv.URL, "token")
			_, err := client.ListTutors(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("status %d: want %v in chain, got %v", tc.status, tc.want, err)
			}
			var apiErr *apierr.Error
			if !errors.As(err, &apiErr) || apiErr.Status != tc.status {
				t.Fatalf("status %d: want apierr with matching status, got %v", tc.status, err)
			}
		})
	}
}

func TestHTTPClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"tutors": []Tutor{}})
	}))
	defer srv.Close()

	client := NewHTTPClient(mustTestLogger(t), srv.URL, "secret-token")
	if _, err := client.ListTutors(context.Background()); err != nil {
		t.Fatalf("ListTutors: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("authorization header: %q", gotAuth)
	}
}

func TestHTTPClientStreamReplyRelaysBytes(t *testing.T) {
	chatID := uuid.New()
	frames := []string{
		"data: {\"type\":\"text-delta\",\"delta\":\"Hi\"}\n\n",
		"data: [DONE]\n\n",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chats/"+chatID.String()+"/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("accept header: %q", accept)
		}
		var req ReplyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content != "question" {
			t.Errorf("request body: %+v err=%v", req, err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range frames {
			_, _ = w.Write([]byte(f))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(mustTestLogger(t), srv.URL, "token")
	var got []byte
	err := client.StreamReply(context.Background(), chatID, ReplyRequest{Content: "question"}, func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamReply: %v", err)
	}
	want := frames[0] + frames[1]
	if string(got) != want {
		t.Fatalf("relayed bytes: want=%q got=%q", want, got)
	}
}

func TestHTTPClientStreamReplyContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"delta\":\"first\"}\n\n"))
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewHTTPClient(mustTestLogger(t), srv.URL, "token")
	err := client.StreamReply(ctx, uuid.New(), ReplyRequest{Content: "q"}, func(chunk []byte) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled stream: want context.Canceled, got %v", err)
	}
}

func TestHTTPClientStreamReplyCallbackAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 100; i++ {
			_, _ = w.Write([]byte("chunk\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	abort := errors.New("stop now")
	client := NewHTTPClient(mustTestLogger(t), srv.URL, "token")
	err := client.StreamReply(context.Background(), uuid.New(), ReplyRequest{Content: "q"}, func(chunk []byte) error {
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("want callback error, got %v", err)
	}
}
