package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/funnelcast/funnelcast/internal/player"
)

func sampleLead() player.Lead {
	return player.Lead{
		SessionID: "sess-1",
		CompanyID: "co-1",
		FormTitle: "Contact details",
		Fields: map[string]string{
			"Email": "jane@example.com",
		},
		JourneySummary: "Intro -> Submitted form: Contact details",
	}
}

func TestSendLeadNotification_PostsCorrectPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	var mu sync.Mutex
	var receivedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &receivedBody)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mock.ExpectQuery(`SELECT slack_webhook_url FROM notification_preferences WHERE company_id = \$1 AND slack_webhook_url IS NOT NULL`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows([]string{"slack_webhook_url"}).AddRow(server.URL))

	client := New(mock)
	err = client.SendLeadNotification(context.Background(), "alice@example.com", "Alice", "Product Demo", sampleLead())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if receivedBody == nil {
		t.Fatal("expected HTTP request to Slack webhook, got none")
	}

	blocks, ok := receivedBody["blocks"].([]any)
	if !ok || len(blocks) < 3 {
		t.Fatalf("expected at least 3 blocks, got %v", receivedBody)
	}

	section := blocks[0].(map[string]any)
	if section["type"] != "section" {
		t.Errorf("expected first block type 'section', got %v", section["type"])
	}
	headline := section["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headline, "Product Demo") || !strings.Contains(headline, "Contact details") {
		t.Errorf("expected headline with session and form title, got %q", headline)
	}

	fieldsBlock := blocks[1].(map[string]any)
	fieldsText := fieldsBlock["text"].(map[string]any)["text"].(string)
	if !strings.Contains(fieldsText, "Email: jane@example.com") {
		t.Errorf("expected formatted lead fields, got %q", fieldsText)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSendLeadNotification_NoWebhookConfigured(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT slack_webhook_url FROM notification_preferences`).
		WithArgs("co-1").
		WillReturnError(pgx.ErrNoRows)

	client := New(mock)
	err = client.SendLeadNotification(context.Background(), "alice@example.com", "Alice", "Product Demo", sampleLead())
	if err != nil {
		t.Fatalf("expected nil error when no webhook configured, got %v", err)
	}
}

func TestSendLeadNotification_SlackErrorIsSwallowed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	mock.ExpectQuery(`SELECT slack_webhook_url FROM notification_preferences`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows([]string{"slack_webhook_url"}).AddRow(server.URL))

	client := New(mock)
	err = client.SendLeadNotification(context.Background(), "alice@example.com", "Alice", "Product Demo", sampleLead())
	if err != nil {
		t.Fatalf("expected nil error even when Slack fails, got %v", err)
	}
}

func TestSendSessionCompletedNotification_PostsPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	var mu sync.Mutex
	var receivedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &receivedBody)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mock.ExpectQuery(`SELECT slack_webhook_url FROM notification_preferences`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows([]string{"slack_webhook_url"}).AddRow(server.URL))

	client := New(mock)
	err = client.SendSessionCompletedNotification(context.Background(), "alice@example.com", "Alice", "co-1", "Product Demo", "Enterprise plan", "Intro -> Pricing")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	blocks, ok := receivedBody["blocks"].([]any)
	if !ok || len(blocks) < 2 {
		t.Fatalf("expected at least 2 blocks, got %v", receivedBody)
	}
	headline := blocks[0].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headline, "Enterprise plan") {
		t.Errorf("expected solution in headline, got %q", headline)
	}
}

func TestSendTestMessage(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := SendTestMessage(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected webhook to be called")
	}
}

func TestSendTestMessage_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if err := SendTestMessage(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
