package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mentorhub/crm-followup/internal/followup"
	"github.com/mentorhub/crm-followup/internal/leads"
)

type stubSettings struct {
	settings *followup.Settings
}

func (s *stubSettings) GetOrCreate(_ context.Context, _ string) (*followup.Settings, error) {
	return s.settings, nil
}

func TestSenderRoutesBySubscriberID(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"message_id":"wamid.1","status":"queued"}`))
	}))
	defer server.Close()

	settings := followup.DefaultSettings("org-1")
	settings.WhatsAppSubscriberID = "sub-42"
	sender := NewSender(newTestClient(t, server, Config{}), &stubSettings{settings: settings})

	lead := &leads.Lead{ID: "lead-1", OrgID: "org-1", Phone: "+5511999990000"}
	if err := sender.Send(context.Background(), lead, "Oi Maria"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(gotBody, `"subscriber_id":"sub-42"`) {
		t.Fatalf("subscriber id not routed: %s", gotBody)
	}
}

func TestSenderRejectsLeadWithoutPhone(t *testing.T) {
	sender := NewSender(nil, &stubSettings{settings: followup.DefaultSettings("org-1")})
	err := sender.Send(context.Background(), &leads.Lead{ID: "lead-1", OrgID: "org-1"}, "Oi")
	if err == nil || !strings.Contains(err.Error(), "no phone") {
		t.Fatalf("expected phone error, got %v", err)
	}
}

func TestSenderRequiresSubscriberID(t *testing.T) {
	sender := NewSender(nil, &stubSettings{settings: followup.DefaultSettings("org-1")})
	lead := &leads.Lead{ID: "lead-1", OrgID: "org-1", Phone: "+5511999990000"}
	err := sender.Send(context.Background(), lead, "Oi")
	if err == nil || !strings.Contains(err.Error(), "subscriber") {
		t.Fatalf("expected subscriber error, got %v", err)
	}
}
