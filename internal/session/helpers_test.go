package session

import (
	"context"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/funnelcast/funnelcast/internal/player"
)

const (
	testHMACSecret = "test-hmac-secret-for-watch-auth"
	testBaseURL    = "http://localhost:8080"
	testShareToken = "abc123defghi"
	testSessionID  = "11111111-1111-1111-1111-111111111111"
	testCompanyID  = "22222222-2222-2222-2222-222222222222"
	testVideoOneID = "33333333-3333-3333-3333-333333333331"
	testVideoTwoID = "33333333-3333-3333-3333-333333333332"
	testLinkID     = "44444444-4444-4444-4444-444444444441"
)

type mockStorage struct {
	mediaURL    string
	downloadURL string
}

func (m *mockStorage) MediaURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return m.mediaURL, nil
}

func (m *mockStorage) GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return m.downloadURL, nil
}

const testFormSchema = `{
	"id": "form-1",
	"title": "Talk to sales",
	"fields": [
		{"id": "f-email", "label": "Email", "type": "email", "required": true},
		{"id": "f-name", "label": "Name", "type": "text", "required": false}
	]
}`

type bundleFixture struct {
	sharePassword  *string
	shareExpiresAt *time.Time
}

// expectBundleQueries arms the mock for one LoadBundle call on a two-video
// linear session whose first video carries a url link and a form link.
func expectBundleQueries(mock pgxmock.PgxPoolIface, fx bundleFixture) {
	mock.ExpectQuery(`SELECT id, company_id, title, session_type, share_password, share_expires_at`).
		WithArgs(testShareToken).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "company_id", "title", "session_type", "share_password", "share_expires_at",
			"navigation_video_id", "navigation_button_image_url", "show_play_button",
		}).AddRow(
			testSessionID, testCompanyID, "Product Tour", player.SessionLinear, fx.sharePassword, fx.shareExpiresAt,
			(*string)(nil), (*string)(nil), true,
		))

	mock.ExpectQuery(`SELECT id, title, file_key, duration_seconds, freeze_at_end, is_navigation`).
		WithArgs(testSessionID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "file_key", "duration_seconds", "freeze_at_end", "is_navigation",
			"destination_video_id", "solution_id",
		}).
			AddRow(testVideoOneID, "Intro", "media/intro.mp4", 30.0, false, false, (*string)(nil), (*string)(nil)).
			AddRow(testVideoTwoID, "Pricing", "media/pricing.mp4", 45.0, false, false, (*string)(nil), (*string)(nil)))

	formRaw := []byte(testFormSchema)
	linkURL := "https://example.com/docs"
	mock.ExpectQuery(`SELECT video_id, id, timestamp_seconds, duration_ms, label, link_type`).
		WithArgs(testSessionID).
		WillReturnRows(pgxmock.NewRows([]string{
			"video_id", "id", "timestamp_seconds", "duration_ms", "label", "link_type",
			"position_x", "position_y",
			"normal_image_url", "normal_image_width", "normal_image_height",
			"hover_image_url", "hover_image_width", "hover_image_height",
			"url", "destination_video_id", "form_schema",
		}).
			AddRow(testVideoOneID, testLinkID, 5.0, 3000, "Read the docs", player.LinkURL,
				0.5, 0.5,
				(*string)(nil), (*float64)(nil), (*float64)(nil),
				(*string)(nil), (*float64)(nil), (*float64)(nil),
				&linkURL, (*string)(nil), []byte(nil)).
			AddRow(testVideoOneID, "44444444-4444-4444-4444-444444444442", 10.0, 3000, "Talk to sales", player.LinkForm,
				0.2, 0.8,
				(*string)(nil), (*float64)(nil), (*float64)(nil),
				(*string)(nil), (*float64)(nil), (*float64)(nil),
				(*string)(nil), (*string)(nil), formRaw))

	mock.ExpectQuery(`SELECT q.video_id, q.id, q.text, a.id, a.label, a.destination_video_id`).
		WithArgs(testSessionID).
		WillReturnRows(pgxmock.NewRows([]string{
			"video_id", "id", "text", "answer_id", "label", "destination_video_id",
		}))

	mock.ExpectQuery(`SELECT id, category, url, email, video_id, form_schema\s+FROM solutions`).
		WithArgs(testSessionID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "category", "url", "email", "video_id", "form_schema",
		}))

	mock.ExpectQuery(`SELECT answer_ids, solution_id`).
		WithArgs(testSessionID).
		WillReturnRows(pgxmock.NewRows([]string{"answer_ids", "solution_id"}))
}

func newTestHandler(mock pgxmock.PgxPoolIface) *Handler {
	return NewHandler(mock, &mockStorage{mediaURL: "https://s3.example.com/media"}, NewRegistry(0), testBaseURL, testHMACSecret, false)
}
