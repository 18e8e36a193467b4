package player

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/funnelcast/funnelcast/internal/validate"
)

// Lead is the record persisted when a viewer submits an interlude form.
// Fields holds the human-readable (label -> value) map; Raw keeps the
// field-id keyed values for machine use.
type Lead struct {
	SessionID      string
	CompanyID      string
	FormTitle      string
	Fields         map[string]string
	Raw            map[string]string
	Journey        []JourneyStep
	JourneySummary string
}

// LeadSink persists a lead. The surrounding app implements it; the engine
// only calls it.
type LeadSink interface {
	SaveLead(ctx context.Context, lead Lead) error
}

// LeadNotifier sends the author a notification about a new lead.
type LeadNotifier interface {
	SendLeadNotification(ctx context.Context, lead Lead) error
}

// FieldError is a per-field validation failure; forms are resubmittable.
type FieldError struct {
	FieldID string `json:"fieldId"`
	Message string `json:"message"`
}

// Submission is the validated outcome of one form fill.
type Submission struct {
	Raw       map[string]string
	Formatted map[string]string
}

// ValidateForm checks required fields and field-type rules against the raw
// values (multi-valued for checkbox groups) and computes the raw and
// formatted maps. Option ids resolve to option labels in the formatted map;
// number values are stripped of anything but digits and a decimal point,
// and any minus sign rejects the value outright.
func ValidateForm(schema *FormSchema, values map[string][]string) (*Submission, []FieldError) {
	var errs []FieldError
	sub := &Submission{
		Raw:       make(map[string]string),
		Formatted: make(map[string]string),
	}

	for _, field := range schema.Fields {
		vals := nonEmpty(values[field.ID])
		if len(vals) == 0 {
			if field.Required {
				errs = append(errs, FieldError{field.ID, fmt.Sprintf("%s is required", field.Label)})
			}
			continue
		}

		if tooLong := oversized(vals); tooLong != "" {
			errs = append(errs, FieldError{field.ID, tooLong})
			continue
		}

		switch field.Type {
		case FieldNumber:
			cleaned, err := sanitizeNumber(vals[0])
			if err != nil {
				errs = append(errs, FieldError{field.ID, err.Error()})
				continue
			}
			if cleaned == "" && field.Required {
				errs = append(errs, FieldError{field.ID, fmt.Sprintf("%s is required", field.Label)})
				continue
			}
			sub.Raw[field.ID] = cleaned
			sub.Formatted[field.Label] = cleaned

		case FieldDropdown, FieldRadio:
			sub.Raw[field.ID] = vals[0]
			sub.Formatted[field.Label] = optionLabel(field, vals[0])

		case FieldCheckbox:
			labels := make([]string, 0, len(vals))
			for _, v := range vals {
				labels = append(labels, optionLabel(field, v))
			}
			sub.Raw[field.ID] = strings.Join(vals, ",")
			sub.Formatted[field.Label] = strings.Join(labels, ", ")

		default:
			sub.Raw[field.ID] = vals[0]
			sub.Formatted[field.Label] = vals[0]
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return sub, nil
}

func oversized(vals []string) string {
	for _, v := range vals {
		if msg := validate.FieldValue(v); msg != "" {
			return msg
		}
	}
	return ""
}

func nonEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

func optionLabel(field FormField, optionID string) string {
	for _, o := range field.Options {
		if o.ID == optionID {
			return o.Label
		}
	}
	return optionID
}

// sanitizeNumber keeps digits and at most the decimal separators present;
// a minus sign anywhere rejects the input, negative numbers are not
// accepted at all.
func sanitizeNumber(v string) (string, error) {
	if strings.Contains(v, "-") {
		return "", fmt.Errorf("negative numbers are not allowed")
	}
	var b strings.Builder
	for _, r := range v {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// Interlude pauses playback for a form-type overlay link, validates and
// submits the form, and hands control back with the optional post-submit
// destination. Persistence or notification failures are logged and
// swallowed: a lost lead must never strand the viewer.
type Interlude struct {
	controller *Controller
	journey    *Journey
	sink       LeadSink
	notifier   LeadNotifier

	open *OverlayLink
}

// NewInterlude wires an interlude controller. Sink and notifier may be nil.
func NewInterlude(controller *Controller, journey *Journey, sink LeadSink, notifier LeadNotifier) *Interlude {
	return &Interlude{controller: controller, journey: journey, sink: sink, notifier: notifier}
}

// Open suspends playback and presents the link's form. It is a no-op for
// non-form links.
func (it *Interlude) Open(link *OverlayLink) *FormSchema {
	if link == nil || link.Type != LinkForm || link.Form == nil {
		return nil
	}
	it.open = link
	it.controller.PauseExternal()
	return link.Form
}

// Opened reports whether a form is currently presented.
func (it *Interlude) Opened() bool { return it.open != nil }

// LastOpenForm returns the schema of the open form, for watch-time
// payloads that capture an abandoned form.
func (it *Interlude) LastOpenForm() *FormSchema {
	if it.open == nil {
		return nil
	}
	return it.open.Form
}

// Submit runs the submit pipeline in order: journey step, lead persistence,
// author notification. Validation failures return field errors and keep the
// form open; every downstream failure closes the form and resumes playback
// anyway. The returned destination is the post-submit branch target, empty
// when playback should just resume.
func (it *Interlude) Submit(ctx context.Context, session Session, values map[string][]string) (string, []FieldError) {
	if it.open == nil {
		return "", nil
	}
	schema := it.open.Form

	sub, fieldErrs := ValidateForm(schema, values)
	if len(fieldErrs) > 0 {
		return "", fieldErrs
	}

	it.journey.AddClick(it.controller.Video(), ClickedElement{
		ID:    it.open.ID,
		Label: formStepPrefix + schema.Title,
		Kind:  ClickForm,
	})

	lead := Lead{
		SessionID:      session.ID,
		CompanyID:      session.CompanyID,
		FormTitle:      schema.Title,
		Fields:         sub.Formatted,
		Raw:            sub.Raw,
		Journey:        it.journey.Steps(),
		JourneySummary: it.journey.Summarize(),
	}

	if it.sink != nil {
		if err := it.sink.SaveLead(ctx, lead); err != nil {
			slog.Error("player: lead save failed", "session_id", session.ID, "form", schema.Title, "error", err)
		}
	}
	if it.notifier != nil {
		if err := it.notifier.SendLeadNotification(ctx, lead); err != nil {
			slog.Error("player: lead notification failed", "session_id", session.ID, "form", schema.Title, "error", err)
		}
	}

	dest := schema.DestinationVideoID
	it.open = nil
	it.controller.Resume()
	return dest, nil
}

// Close abandons the open form and resumes playback without submitting.
func (it *Interlude) Close() {
	it.open = nil
	it.controller.Resume()
}
