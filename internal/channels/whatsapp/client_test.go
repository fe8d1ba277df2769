package whatsapp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mentorhub/crm-followup/pkg/logging"
)

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = server.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSendText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		for _, field := range []string{"\"subscriber_id\"", "\"phone\"", "\"message\""} {
			if !strings.Contains(string(body), field) {
				t.Fatalf("expected %s field, got %s", field, string(body))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message_id":"wamid.123","status":"queued"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	result, err := client.SendText(context.Background(), SendTextRequest{
		SubscriberID: "sub-1",
		Phone:        "+5511999990000",
		Message:      "Oi Maria",
	})
	if err != nil {
		t.Fatalf("send text: %v", err)
	}
	if result.MessageID != "wamid.123" || result.Status != "queued" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestSendTextValidation(t *testing.T) {
	client := newTestClient(t, httptest.NewServer(http.NotFoundHandler()), Config{})
	if _, err := client.SendText(context.Background(), SendTextRequest{Phone: "+551199", Message: "hi"}); err == nil {
		t.Fatal("expected subscriber id validation error")
	}
	if _, err := client.SendText(context.Background(), SendTextRequest{SubscriberID: "s", Message: "hi"}); err == nil {
		t.Fatal("expected phone validation error")
	}
	if _, err := client.SendText(context.Background(), SendTextRequest{SubscriberID: "s", Phone: "+551199"}); err == nil {
		t.Fatal("expected message validation error")
	}
}

func TestNewClientAcceptsApplicationLogger(t *testing.T) {
	// The mains hand the shared application logger straight to the client.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"message_id":"wamid.789","status":"queued"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{Logger: logging.New("debug")})
	result, err := client.SendText(context.Background(), SendTextRequest{
		SubscriberID: "sub-1", Phone: "+5511999990000", Message: "Oi",
	})
	if err != nil {
		t.Fatalf("send text: %v", err)
	}
	if result.MessageID != "wamid.789" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := New(Config{BaseURL: "https://gw.example.com"}); err == nil {
		t.Fatal("expected api key validation error")
	}
	if _, err := New(Config{APIKey: "key"}); err == nil {
		t.Fatal("expected base url validation error")
	}
}

func TestSendTextRetriesOn500(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code":"internal","message":"gateway hiccup"}`))
			return
		}
		w.Write([]byte(`{"message_id":"wamid.456","status":"queued"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 2})
	result, err := client.SendText(context.Background(), SendTextRequest{
		SubscriberID: "sub-1", Phone: "+5511999990000", Message: "Oi",
	})
	if err != nil {
		t.Fatalf("send text: %v", err)
	}
	if result.MessageID != "wamid.456" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestSendTextDoesNotRetryOn400(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"invalid_phone","message":"phone not on whatsapp"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 3})
	_, err := client.SendText(context.Background(), SendTextRequest{
		SubscriberID: "sub-1", Phone: "+5511999990000", Message: "Oi",
	})
	if err == nil {
		t.Fatal("expected API error")
	}
	if !strings.Contains(err.Error(), "phone not on whatsapp") {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
