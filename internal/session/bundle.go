package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/funnelcast/funnelcast/internal/database"
	"github.com/funnelcast/funnelcast/internal/player"
)

// Bundle is one loaded session plus the share-gate metadata the watch
// endpoints need but the engine does not.
type Bundle struct {
	Data           *player.SessionData
	SharePassword  *string
	ShareExpiresAt *time.Time
}

// formSchemaJSON is the stored shape of an authored form. It lives in the
// form_schema JSONB columns of overlay_links and solutions, and doubles as
// the wire shape on the watch surface.
type formSchemaJSON struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	DestinationVideoID string          `json:"destinationVideoId,omitempty"`
	Fields             []formFieldJSON `json:"fields"`
}

type formFieldJSON struct {
	ID       string            `json:"id"`
	Label    string            `json:"label"`
	Type     string            `json:"type"`
	Required bool              `json:"required"`
	Options  []fieldOptionJSON `json:"options,omitempty"`
}

type fieldOptionJSON struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func decodeFormSchema(raw []byte) (*player.FormSchema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fs formSchemaJSON
	if err := json.Unmarshal(raw, &fs); err != nil {
		return nil, fmt.Errorf("decode form schema: %w", err)
	}
	schema := &player.FormSchema{
		ID:                 fs.ID,
		Title:              fs.Title,
		DestinationVideoID: fs.DestinationVideoID,
	}
	for _, f := range fs.Fields {
		field := player.FormField{
			ID:       f.ID,
			Label:    f.Label,
			Type:     player.FieldType(f.Type),
			Required: f.Required,
		}
		for _, o := range f.Options {
			field.Options = append(field.Options, player.FieldOption{ID: o.ID, Label: o.Label})
		}
		schema.Fields = append(schema.Fields, field)
	}
	return schema, nil
}

// LoadBundle fetches a ready session by share token with its full graph:
// videos in authored order, overlay links, questions, solutions and answer
// combinations. Media keys are replaced by presigned URLs.
func LoadBundle(ctx context.Context, db database.DBTX, storage ObjectStorage, shareToken string) (*Bundle, error) {
	b := &Bundle{Data: &player.SessionData{}}
	var navVideoID *string
	var navButtonImageURL *string

	err := db.QueryRow(ctx,
		`SELECT id, company_id, title, session_type, share_password, share_expires_at,
		        navigation_video_id, navigation_button_image_url, show_play_button
		 FROM sessions WHERE share_token = $1 AND status = 'ready'`,
		shareToken,
	).Scan(
		&b.Data.Session.ID, &b.Data.Session.CompanyID, &b.Data.Session.Title,
		&b.Data.Session.Type, &b.SharePassword, &b.ShareExpiresAt,
		&navVideoID, &navButtonImageURL, &b.Data.Session.ShowPlayButton,
	)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if navVideoID != nil {
		b.Data.Session.NavigationVideoID = *navVideoID
	}
	if navButtonImageURL != nil {
		b.Data.Session.NavigationButtonImageURL = *navButtonImageURL
	}

	byID := map[string]*player.VideoNode{}
	if err := loadVideos(ctx, db, storage, b.Data, byID); err != nil {
		return nil, err
	}
	if err := loadLinks(ctx, db, b.Data.Session.ID, byID); err != nil {
		return nil, err
	}
	if err := loadQuestions(ctx, db, b.Data.Session.ID, byID); err != nil {
		return nil, err
	}
	if err := loadSolutions(ctx, db, b.Data); err != nil {
		return nil, err
	}
	if err := loadCombinations(ctx, db, b.Data); err != nil {
		return nil, err
	}

	return b, nil
}

func loadVideos(ctx context.Context, db database.DBTX, storage ObjectStorage, data *player.SessionData, byID map[string]*player.VideoNode) error {
	rows, err := db.Query(ctx,
		`SELECT id, title, file_key, duration_seconds, freeze_at_end, is_navigation,
		        destination_video_id, solution_id
		 FROM videos WHERE session_id = $1 ORDER BY position`,
		data.Session.ID,
	)
	if err != nil {
		return fmt.Errorf("load videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v := &player.VideoNode{}
		var fileKey string
		var destID, solID *string
		if err := rows.Scan(&v.ID, &v.Title, &fileKey, &v.DurationSeconds,
			&v.FreezeAtEnd, &v.IsNavigationVideo, &destID, &solID); err != nil {
			return fmt.Errorf("scan video: %w", err)
		}
		if destID != nil {
			v.DestinationVideoID = *destID
		}
		if solID != nil {
			v.SolutionID = *solID
		}
		url, err := storage.MediaURL(ctx, fileKey)
		if err != nil {
			return fmt.Errorf("presign video %s: %w", v.ID, err)
		}
		v.URL = url

		byID[v.ID] = v
		if v.IsNavigationVideo {
			data.NavigationVideo = v
		} else {
			data.Videos = append(data.Videos, v)
		}
	}
	return rows.Err()
}

func loadLinks(ctx context.Context, db database.DBTX, sessionID string, byID map[string]*player.VideoNode) error {
	rows, err := db.Query(ctx,
		`SELECT video_id, id, timestamp_seconds, duration_ms, label, link_type,
		        position_x, position_y,
		        normal_image_url, normal_image_width, normal_image_height,
		        hover_image_url, hover_image_width, hover_image_height,
		        url, destination_video_id, form_schema
		 FROM overlay_links
		 WHERE video_id IN (SELECT id FROM videos WHERE session_id = $1)
		 ORDER BY video_id, position`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("load overlay links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var videoID string
		var l player.OverlayLink
		var normalURL, hoverURL, linkURL, destID *string
		var normalW, normalH, hoverW, hoverH *float64
		var formRaw []byte
		if err := rows.Scan(&videoID, &l.ID, &l.TimestampSeconds, &l.DurationMs,
			&l.Label, &l.Type, &l.PositionX, &l.PositionY,
			&normalURL, &normalW, &normalH,
			&hoverURL, &hoverW, &hoverH,
			&linkURL, &destID, &formRaw); err != nil {
			return fmt.Errorf("scan overlay link: %w", err)
		}
		if normalURL != nil {
			l.NormalImage = &player.OverlayImage{URL: *normalURL}
			if normalW != nil {
				l.NormalImage.Width = *normalW
			}
			if normalH != nil {
				l.NormalImage.Height = *normalH
			}
		}
		if hoverURL != nil {
			l.HoverImage = &player.OverlayImage{URL: *hoverURL}
			if hoverW != nil {
				l.HoverImage.Width = *hoverW
			}
			if hoverH != nil {
				l.HoverImage.Height = *hoverH
			}
		}
		if linkURL != nil {
			l.URL = *linkURL
		}
		if destID != nil {
			l.DestinationVideoID = *destID
		}
		schema, err := decodeFormSchema(formRaw)
		if err != nil {
			return fmt.Errorf("link %s: %w", l.ID, err)
		}
		l.Form = schema

		if v, ok := byID[videoID]; ok {
			v.Links = append(v.Links, l)
		}
	}
	return rows.Err()
}

func loadQuestions(ctx context.Context, db database.DBTX, sessionID string, byID map[string]*player.VideoNode) error {
	rows, err := db.Query(ctx,
		`SELECT q.video_id, q.id, q.text, a.id, a.label, a.destination_video_id
		 FROM questions q
		 JOIN answers a ON a.question_id = q.id
		 WHERE q.video_id IN (SELECT id FROM videos WHERE session_id = $1)
		 ORDER BY q.video_id, q.position, a.position`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var videoID, questionID, questionText, answerID, answerLabel string
		var destID *string
		if err := rows.Scan(&videoID, &questionID, &questionText, &answerID, &answerLabel, &destID); err != nil {
			return fmt.Errorf("scan question: %w", err)
		}
		v, ok := byID[videoID]
		if !ok {
			continue
		}
		answer := player.Answer{ID: answerID, Label: answerLabel}
		if destID != nil {
			answer.DestinationVideoID = *destID
		}
		if n := len(v.Questions); n > 0 && v.Questions[n-1].ID == questionID {
			v.Questions[n-1].Answers = append(v.Questions[n-1].Answers, answer)
		} else {
			v.Questions = append(v.Questions, player.Question{
				ID:      questionID,
				Text:    questionText,
				Answers: []player.Answer{answer},
			})
		}
	}
	return rows.Err()
}

func loadSolutions(ctx context.Context, db database.DBTX, data *player.SessionData) error {
	rows, err := db.Query(ctx,
		`SELECT id, category, url, email, video_id, form_schema
		 FROM solutions WHERE session_id = $1`,
		data.Session.ID,
	)
	if err != nil {
		return fmt.Errorf("load solutions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := &player.Solution{}
		var url, emailAddr, videoID *string
		var formRaw []byte
		if err := rows.Scan(&s.ID, &s.Category, &url, &emailAddr, &videoID, &formRaw); err != nil {
			return fmt.Errorf("scan solution: %w", err)
		}
		if url != nil {
			s.URL = *url
		}
		if emailAddr != nil {
			s.Email = *emailAddr
		}
		if videoID != nil {
			s.VideoID = *videoID
		}
		schema, err := decodeFormSchema(formRaw)
		if err != nil {
			return fmt.Errorf("solution %s: %w", s.ID, err)
		}
		s.Form = schema
		data.Solutions = append(data.Solutions, s)
	}
	return rows.Err()
}

func loadCombinations(ctx context.Context, db database.DBTX, data *player.SessionData) error {
	rows, err := db.Query(ctx,
		`SELECT answer_ids, solution_id
		 FROM answer_combinations WHERE session_id = $1 ORDER BY position`,
		data.Session.ID,
	)
	if err != nil {
		return fmt.Errorf("load answer combinations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c player.AnswerCombination
		if err := rows.Scan(&c.AnswerIDs, &c.SolutionID); err != nil {
			return fmt.Errorf("scan answer combination: %w", err)
		}
		data.Combinations = append(data.Combinations, c)
	}
	return rows.Err()
}
