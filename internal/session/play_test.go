package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/funnelcast/funnelcast/internal/player"
)

func playRouter(handler *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/watch/{shareToken}/start", handler.StartPlayback)
	r.Post("/api/play/event", handler.PlayEvent)
	r.Post("/api/play/form", handler.PlayForm)
	return r
}

func startPlayback(t *testing.T, router *chi.Mux) startResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]bool{"autoplayGranted": true})
	req := httptest.NewRequest(http.MethodPost, "/api/watch/"+testShareToken+"/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var resp startResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("start: failed to decode response: %v", err)
	}
	return resp
}

func sendEvent(t *testing.T, router *chi.Mux, token string, event map[string]any) (*httptest.ResponseRecorder, eventResponse) {
	t.Helper()
	body, _ := json.Marshal(event)
	req := httptest.NewRequest(http.MethodPost, "/api/play/event", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp eventResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("event: failed to decode response: %v", err)
		}
	}
	return rec, resp
}

func TestStartPlayback_ReturnsTokenAndState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	resp := startPlayback(t, router)

	if resp.Token == "" {
		t.Error("expected a playback token")
	}
	if resp.PlaybackID == "" {
		t.Error("expected a playback id")
	}
	if resp.State.VideoID != testVideoOneID {
		t.Errorf("expected first video mounted, got %s", resp.State.VideoID)
	}
	if resp.State.Mode != player.ModePlaying {
		t.Errorf("expected playing with autoplay granted, got %s", resp.State.Mode)
	}
	if handler.registry.Len() != 1 {
		t.Errorf("expected 1 registered playback, got %d", handler.registry.Len())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestStartPlayback_SessionNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, company_id, title, session_type`).
		WithArgs(testShareToken).
		WillReturnError(errors.New("no rows"))

	handler := newTestHandler(mock)
	router := playRouter(handler)

	body, _ := json.Marshal(map[string]bool{"autoplayGranted": true})
	req := httptest.NewRequest(http.MethodPost, "/api/watch/"+testShareToken+"/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestStartPlayback_ExpiredLink(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expired := time.Now().Add(-time.Hour)
	expectBundleQueries(mock, bundleFixture{shareExpiresAt: &expired})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	body, _ := json.Marshal(map[string]bool{"autoplayGranted": true})
	req := httptest.NewRequest(http.MethodPost, "/api/watch/"+testShareToken+"/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusGone {
		t.Fatalf("expected status %d, got %d", http.StatusGone, rec.Code)
	}
}

func TestStartPlayback_PasswordGateWithoutCookie(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	passwordHash, _ := HashSharePassword("secret123")
	expectBundleQueries(mock, bundleFixture{sharePassword: &passwordHash})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	body, _ := json.Marshal(map[string]bool{"autoplayGranted": true})
	req := httptest.NewRequest(http.MethodPost, "/api/watch/"+testShareToken+"/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestPlayEvent_RequiresBearerToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := newTestHandler(mock)
	router := playRouter(handler)

	rec, _ := sendEvent(t, router, "", map[string]any{"type": "play"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestPlayEvent_RejectsForgedToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := newTestHandler(mock)
	router := playRouter(handler)

	rec, _ := sendEvent(t, router, "not-a-real-token", map[string]any{"type": "play"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestPlayEvent_PauseAndPlay(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)

	rec, resp := sendEvent(t, router, start.Token, map[string]any{"type": "pause"})
	if rec.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.State.Mode != player.ModePaused {
		t.Errorf("expected paused, got %s", resp.State.Mode)
	}

	rec, resp = sendEvent(t, router, start.Token, map[string]any{"type": "play"})
	if rec.Code != http.StatusOK {
		t.Fatalf("play: expected 200, got %d", rec.Code)
	}
	if resp.State.Mode != player.ModePlaying {
		t.Errorf("expected playing, got %s", resp.State.Mode)
	}
}

func TestPlayEvent_EndedAdvancesLinearSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)

	rec, resp := sendEvent(t, router, start.Token, map[string]any{"type": "ended"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.State.VideoID != testVideoTwoID {
		t.Errorf("expected advance to second video, got %s", resp.State.VideoID)
	}
}

func TestPlayEvent_URLLinkReturnsOpenURL(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)

	rec, resp := sendEvent(t, router, start.Token, map[string]any{"type": "link", "linkId": testLinkID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.OpenURL != "https://example.com/docs" {
		t.Errorf("expected openUrl for url link, got %q", resp.OpenURL)
	}
}

func TestPlayEvent_FormLinkOpensForm(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)

	rec, resp := sendEvent(t, router, start.Token,
		map[string]any{"type": "link", "linkId": "44444444-4444-4444-4444-444444444442"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Form == nil {
		t.Fatal("expected form in response")
	}
	if resp.Form.Title != "Talk to sales" {
		t.Errorf("expected form title Talk to sales, got %s", resp.Form.Title)
	}
	if !resp.State.FormOpen {
		t.Error("expected formOpen state")
	}
}

func TestPlayEvent_UnknownLink(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)

	rec, _ := sendEvent(t, router, start.Token, map[string]any{"type": "link", "linkId": "nope"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
	}
}

func TestPlayEvent_UnknownType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)

	rec, _ := sendEvent(t, router, start.Token, map[string]any{"type": "teleport"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func submitForm(t *testing.T, router *chi.Mux, token string, body map[string]any) (*httptest.ResponseRecorder, formResponse) {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/play/form", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp formResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("form: failed to decode response: %v", err)
		}
	}
	return rec, resp
}

func TestPlayForm_SubmitWithoutOpenForm(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)

	rec, _ := submitForm(t, router, start.Token, map[string]any{
		"action": "submit",
		"values": map[string][]string{"f-email": {"a@b.co"}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestPlayForm_ValidationErrorsKeepFormOpen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)
	sendEvent(t, router, start.Token,
		map[string]any{"type": "link", "linkId": "44444444-4444-4444-4444-444444444442"})

	rec, resp := submitForm(t, router, start.Token, map[string]any{
		"action": "submit",
		"values": map[string][]string{"f-name": {"Sam"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with field errors, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(resp.FieldErrors) == 0 {
		t.Fatal("expected field errors for missing required email")
	}
	if !resp.State.FormOpen {
		t.Error("expected form to stay open on validation failure")
	}
}

func TestPlayForm_SubmitPersistsLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)
	sendEvent(t, router, start.Token,
		map[string]any{"type": "link", "linkId": "44444444-4444-4444-4444-444444444442"})

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(testSessionID, testCompanyID, "Talk to sales",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, resp := submitForm(t, router, start.Token, map[string]any{
		"action": "submit",
		"values": map[string][]string{"f-email": {"sam@example.com"}, "f-name": {"Sam"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(resp.FieldErrors) != 0 {
		t.Fatalf("expected no field errors, got %+v", resp.FieldErrors)
	}
	if resp.State.FormOpen {
		t.Error("expected form closed after submit")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestPlayForm_Close(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	expectBundleQueries(mock, bundleFixture{})
	handler := newTestHandler(mock)
	router := playRouter(handler)

	start := startPlayback(t, router)
	sendEvent(t, router, start.Token,
		map[string]any{"type": "link", "linkId": "44444444-4444-4444-4444-444444444442"})

	rec, resp := submitForm(t, router, start.Token, map[string]any{"action": "close"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.State.FormOpen {
		t.Error("expected form closed")
	}
}
