// Package mail provides the invitation transports: an AMQP hand-off to a
// mail worker queue and a log-only sender for development.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/me/hireflow/pkg/model"
)

// Message is the envelope published for a mail worker.
type Message struct {
	To      string                   `json:"to"`
	Subject string                   `json:"subject"`
	Body    string                   `json:"body"`
	Payload *model.InvitationPayload `json:"payload"`
}

var bodyTmpl = template.Must(template.New("invitation").Funcs(template.FuncMap{
	"slot": func(s model.SlotOption) string {
		return s.Start.Format("Monday, January 02, 2006 - 3:04 PM")
	},
	"minutes": func(d time.Duration) int { return int(d.Minutes()) },
}).Parse(`Congratulations! You have been selected for an interview.

You passed the assessment for the {{.JobTitle}} position.

Score: {{printf "%.1f" .Score}}%
Rank:  {{.Rank}}

Available time slots:
{{range .SlotOptions}}  - {{slot .}} ({{minutes .Duration}} min)
{{end}}
Please reply with your preferred slot(s). If none of them work for you,
let us know your availability.

Interview format:
{{range .FormatNotes}}  - {{.}}
{{end}}
Job ID: {{.JobID}}
`))

// Render builds the subject and plain-text body for an invitation.
func Render(p *model.InvitationPayload) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, p); err != nil {
		return "", "", fmt.Errorf("render invitation: %w", err)
	}
	return "Interview Invitation - " + p.JobTitle, buf.String(), nil
}

// NewMessage renders p into a Message addressed to email.
func NewMessage(email string, p *model.InvitationPayload) (*Message, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("candidate %s has no email address", p.CandidateID)
	}
	subject, body, err := Render(p)
	if err != nil {
		return nil, err
	}
	return &Message{To: email, Subject: subject, Body: body, Payload: p}, nil
}

// LogMailer writes invitations to the log instead of delivering them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mail", "transport", "log")}
}

// SendInvitation logs the rendered invitation.
func (m *LogMailer) SendInvitation(ctx context.Context, email string, p *model.InvitationPayload) error {
	msg, err := NewMessage(email, p)
	if err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "invitation",
		"to", msg.To,
		"subject", msg.Subject,
		"job_id", p.JobID,
		"candidate_id", p.CandidateID,
		"slots", len(p.SlotOptions),
	)
	m.logger.DebugContext(ctx, "invitation body", "body", msg.Body)
	return nil
}
