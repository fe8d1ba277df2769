package inapp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mentorhub/crm-followup/internal/leads"
	"github.com/mentorhub/crm-followup/pkg/logging"
)

func testLead() *leads.Lead {
	return &leads.Lead{
		ID:    "lead-1",
		OrgID: "org-1",
		Name:  "Maria Silva",
		Phone: "+5511999990000",
	}
}

func TestSendInsertsAndPublishes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sub := redisClient.Subscribe(context.Background(), FeedChannel("org-1"))
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), "org-1", "lead-1", "Maria Silva", "Oi Maria", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sender := NewSender(mock, redisClient, logging.Default())
	if err := sender.Send(context.Background(), testLead(), "Oi Maria"); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var n Notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if n.LeadID != "lead-1" || n.Message != "Oi Maria" {
			t.Fatalf("unexpected payload: %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no feed message received")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSendWorksWithoutRedis(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), "org-1", "lead-1", "Maria Silva", "Oi Maria", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sender := NewSender(mock, nil, logging.Default())
	if err := sender.Send(context.Background(), testLead(), "Oi Maria"); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestListUnread(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "org_id", "lead_id", "lead_name", "message", "read", "created_at"}).
		AddRow("n-1", "org-1", "lead-1", "Maria Silva", "Oi Maria", false, now)
	mock.ExpectQuery("SELECT id, org_id, lead_id").
		WithArgs("org-1", 50).
		WillReturnRows(rows)

	sender := NewSender(mock, nil, logging.Default())
	list, err := sender.ListUnread(context.Background(), "org-1", 0)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(list) != 1 || list[0].ID != "n-1" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestMarkRead_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE notifications").
		WithArgs("n-missing", "org-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	sender := NewSender(mock, nil, logging.Default())
	if err := sender.MarkRead(context.Background(), "org-1", "n-missing"); err == nil {
		t.Fatal("expected not found error")
	}
}
