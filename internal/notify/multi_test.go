package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/funnelcast/funnelcast/internal/player"
)

type recordingNotifier struct {
	leadCalls      int
	completedCalls int
	err            error
}

func (r *recordingNotifier) SendLeadNotification(ctx context.Context, toEmail, toName string, sessionTitle string, lead player.Lead) error {
	r.leadCalls++
	return r.err
}

func (r *recordingNotifier) SendSessionCompletedNotification(ctx context.Context, toEmail, toName, companyID, sessionTitle, solutionTitle, journeySummary string) error {
	r.completedCalls++
	return r.err
}

func TestMulti_FansOutLeadNotifications(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	m := NewMulti(a, b)

	err := m.SendLeadNotification(context.Background(), "alice@example.com", "Alice", "Demo", player.Lead{FormTitle: "Contact"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.leadCalls != 1 || b.leadCalls != 1 {
		t.Errorf("expected both notifiers called once, got %d and %d", a.leadCalls, b.leadCalls)
	}
}

func TestMulti_FailureDoesNotBlockOthers(t *testing.T) {
	a := &recordingNotifier{err: errors.New("boom")}
	b := &recordingNotifier{}
	m := NewMulti(a, b)

	err := m.SendLeadNotification(context.Background(), "alice@example.com", "Alice", "Demo", player.Lead{})
	if err != nil {
		t.Fatalf("expected nil error despite channel failure, got %v", err)
	}
	if b.leadCalls != 1 {
		t.Errorf("expected second notifier still called, got %d", b.leadCalls)
	}
}

func TestMulti_FansOutCompletedNotifications(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	m := NewMulti(a, b)

	err := m.SendSessionCompletedNotification(context.Background(), "alice@example.com", "Alice", "co-1", "Demo", "Enterprise", "Intro -> Pricing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.completedCalls != 1 || b.completedCalls != 1 {
		t.Errorf("expected both notifiers called once, got %d and %d", a.completedCalls, b.completedCalls)
	}
}

func TestMulti_EmptyIsNoop(t *testing.T) {
	m := NewMulti()
	if err := m.SendLeadNotification(context.Background(), "", "", "", player.Lead{}); err != nil {
		t.Fatalf("unexpected error from empty multi: %v", err)
	}
}
