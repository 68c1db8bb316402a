package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type recordingSender struct {
	name string
	err  error
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, title+"|"+message)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func TestNotifyFiltersEvents(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		event  string
		want   int
	}{
		{name: "allowed", events: []string{"round_resolved"}, event: "round_resolved", want: 1},
		{name: "filtered", events: []string{"round_resolved"}, event: "reveal_failed", want: 0},
		{name: "no filter", events: nil, event: "reveal_failed", want: 1},
		{name: "blank entries ignored", events: []string{" ", ""}, event: "reveal_failed", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &recordingSender{name: "rec"}
			n := NewNotifier([]Sender{s}, tt.events, discard())
			if err := n.Notify(context.Background(), tt.event, "t", "m"); err != nil {
				t.Fatalf("Notify: %v", err)
			}
			if len(s.sent) != tt.want {
				t.Errorf("expected %d sends, got %d", tt.want, len(s.sent))
			}
		})
	}
}

func TestNotifierWithoutSendersIsDisabled(t *testing.T) {
	n := NewNotifier(nil, nil, discard())
	if n.Enabled("round_resolved") {
		t.Error("Enabled() = true with no senders")
	}
	if err := n.Notify(context.Background(), "round_resolved", "t", "m"); err != nil {
		t.Errorf("Notify() = %v, want nil", err)
	}
}

func TestNotifyCollectsSenderErrors(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	n := NewNotifier([]Sender{bad, ok}, nil, discard())

	err := n.Notify(context.Background(), "round_resolved", "Round resolved", "r-1")
	if err == nil || !strings.Contains(err.Error(), "bad: down") {
		t.Fatalf("expected combined error, got %v", err)
	}
	if len(ok.sent) != 1 {
		t.Error("healthy sender skipped after a failure")
	}
}

func TestParseWebhookURL(t *testing.T) {
	tests := []struct {
		raw       string
		wantID    string
		wantToken string
		wantErr   bool
	}{
		{raw: "https://discord.com/api/webhooks/123/abc", wantID: "123", wantToken: "abc"},
		{raw: "https://discord.com/api/v10/webhooks/9/tok/", wantID: "9", wantToken: "tok"},
		{raw: "https://discord.com/api/webhooks/123", wantErr: true},
		{raw: "https://example.com/hooks/1/2", wantErr: true},
	}
	for _, tt := range tests {
		id, token, err := parseWebhookURL(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.raw)
			}
			continue
		}
		if err != nil || id != tt.wantID || token != tt.wantToken {
			t.Errorf("%s: got %q %q %v", tt.raw, id, token, err)
		}
	}
}

func TestTelegramSender(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"oracle","username":"oracle_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			mu.Lock()
			texts = append(texts, r.PostForm.Get("text"))
			mu.Unlock()
			if r.PostForm.Get("chat_id") != "-10042" {
				t.Errorf("chat_id = %q", r.PostForm.Get("chat_id"))
			}
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-10042,"type":"group"}}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	s, err := newTelegramSender("token", "-10042", srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatalf("newTelegramSender: %v", err)
	}
	if err := s.Send(context.Background(), "Round resolved", "winner: o_1"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 1 || !strings.HasPrefix(texts[0], "*Round resolved*\n") || !strings.Contains(texts[0], `o\_1`) {
		t.Errorf("unexpected texts %q", texts)
	}
}

func TestTelegramSenderRejectsBadChatID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"oracle"}}`))
	}))
	defer srv.Close()
	if _, err := newTelegramSender("token", "@channel", srv.URL+"/bot%s/%s"); err == nil {
		t.Error("expected error for non-numeric chat ID")
	}
}
