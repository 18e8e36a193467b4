package validate

import "fmt"

// Text field length limits — single source of truth for backend and frontend.
const (
	MaxSessionTitleLength    = 500
	MaxVideoTitleLength      = 500
	MaxButtonLabelLength     = 200
	MaxFormTitleLength       = 200
	MaxFieldLabelLength      = 200
	MaxFieldValueLength      = 2000
	MaxQuestionTextLength    = 1000
	MaxAnswerLabelLength     = 500
	MaxSolutionTitleLength   = 200
	MaxSlackWebhookURLLength = 500
	MaxWebhookURLLength      = 500
	MaxNotifyEmailLength     = 320
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func SessionTitle(s string) string  { return checkLen(s, MaxSessionTitleLength, "session title") }
func VideoTitle(s string) string    { return checkLen(s, MaxVideoTitleLength, "video title") }
func ButtonLabel(s string) string   { return checkLen(s, MaxButtonLabelLength, "button label") }
func FormTitle(s string) string     { return checkLen(s, MaxFormTitleLength, "form title") }
func FieldLabel(s string) string    { return checkLen(s, MaxFieldLabelLength, "field label") }
func FieldValue(s string) string    { return checkLen(s, MaxFieldValueLength, "field value") }
func QuestionText(s string) string  { return checkLen(s, MaxQuestionTextLength, "question text") }
func AnswerLabel(s string) string   { return checkLen(s, MaxAnswerLabelLength, "answer label") }
func SolutionTitle(s string) string { return checkLen(s, MaxSolutionTitleLength, "solution title") }
func SlackWebhookURL(s string) string {
	return checkLen(s, MaxSlackWebhookURLLength, "Slack webhook URL")
}
func WebhookURL(s string) string  { return checkLen(s, MaxWebhookURLLength, "webhook URL") }
func NotifyEmail(s string) string { return checkLen(s, MaxNotifyEmailLength, "notification email") }

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"sessionTitle":    MaxSessionTitleLength,
		"videoTitle":      MaxVideoTitleLength,
		"buttonLabel":     MaxButtonLabelLength,
		"formTitle":       MaxFormTitleLength,
		"fieldLabel":      MaxFieldLabelLength,
		"fieldValue":      MaxFieldValueLength,
		"questionText":    MaxQuestionTextLength,
		"answerLabel":     MaxAnswerLabelLength,
		"solutionTitle":   MaxSolutionTitleLength,
		"slackWebhookURL": MaxSlackWebhookURLLength,
		"webhookURL":      MaxWebhookURLLength,
		"notifyEmail":     MaxNotifyEmailLength,
	}
}
