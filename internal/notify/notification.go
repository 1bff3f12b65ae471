// Package notify renders swap request notifications and hands them to a
// mail transport. Delivery is best effort: callers never observe failures.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/mail"
	"strings"

	"github.com/skillswap/backend/internal/models"
)

// EventType names the swap request event a notification reports.
type EventType string

const (
	EventRequestSent     EventType = "request_sent"
	EventRequestAccepted EventType = "request_accepted"
	EventRequestRejected EventType = "request_rejected"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventRequestSent, EventRequestAccepted, EventRequestRejected:
		return true
	}
	return false
}

// RequestData is the request snapshot quoted in the message.
type RequestData struct {
	FromUserName string `json:"fromUserName"`
	ToUserName   string `json:"toUserName"`
	Message      string `json:"message"`
}

// Notification is one email about a swap request.
type Notification struct {
	To          string      `json:"to"`
	Subject     string      `json:"subject"`
	Type        EventType   `json:"type"`
	RequestData RequestData `json:"requestData"`
}

// Outcome is what a dispatch produced.
type Outcome struct {
	Preview string
}

// ForRequest builds the notification for event about req addressed to to.
func ForRequest(event EventType, to string, req models.SwapRequest) Notification {
	n := Notification{
		To:   to,
		Type: event,
		RequestData: RequestData{
			FromUserName: req.FromUserName,
			ToUserName:   req.ToUserName,
			Message:      req.Message,
		},
	}
	n.Subject = DefaultSubject(n)
	return n
}

// DefaultSubject returns the subject line used when none is supplied.
func DefaultSubject(n Notification) string {
	switch n.Type {
	case EventRequestSent:
		return fmt.Sprintf("New skill swap request from %s", n.RequestData.FromUserName)
	case EventRequestAccepted:
		return "Your skill swap request was accepted!"
	case EventRequestRejected:
		return "Skill swap request update"
	default:
		return "SkillSwap notification"
	}
}

// Validate checks the recipient and event type and fills a blank subject.
func (n *Notification) Validate() error {
	n.To = strings.TrimSpace(n.To)
	if n.To == "" {
		return models.NewValidationError("to", "recipient is required")
	}
	if _, err := mail.ParseAddress(n.To); err != nil {
		return models.NewValidationError("to", "recipient must be a valid email address")
	}
	if !n.Type.Valid() {
		return models.NewValidationError("type", fmt.Sprintf("unknown notification type %q", n.Type))
	}
	n.Subject = strings.TrimSpace(n.Subject)
	if n.Subject == "" {
		n.Subject = DefaultSubject(*n)
	}
	return nil
}

const templateText = `{{define "request_sent"}}<h2>New Skill Swap Request</h2>
<p>Hi {{.Data.ToUserName}},</p>
<p>You have received a new skill swap request from <strong>{{.Data.FromUserName}}</strong>.</p>
<blockquote style="border-left: 4px solid #3b82f6; padding-left: 16px; margin: 16px 0; font-style: italic;">
  "{{.Data.Message}}"
</blockquote>
<p>Log in to your SkillSwap account to respond to this request.</p>
<a href="{{.SiteURL}}/requests" style="background-color: #3b82f6; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block; margin: 16px 0;">View Request</a>
<p>Best regards,<br>The SkillSwap Team</p>
{{end}}
{{define "request_accepted"}}<h2>Your Skill Swap Request was Accepted!</h2>
<p>Hi {{.Data.FromUserName}},</p>
<p>Great news! <strong>{{.Data.ToUserName}}</strong> has accepted your skill swap request.</p>
<p>You can now coordinate your skill exchange session. We recommend reaching out to discuss:</p>
<ul>
  <li>Preferred meeting times</li>
  <li>Communication platform (video call, in-person, etc.)</li>
  <li>Specific topics to cover</li>
  <li>Session duration and frequency</li>
</ul>
<a href="{{.SiteURL}}/requests" style="background-color: #10b981; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block; margin: 16px 0;">View Details</a>
<p>Happy learning!<br>The SkillSwap Team</p>
{{end}}
{{define "request_rejected"}}<h2>Skill Swap Request Update</h2>
<p>Hi {{.Data.FromUserName}},</p>
<p><strong>{{.Data.ToUserName}}</strong> has declined your skill swap request.</p>
<p>Don't worry! There are many other skilled individuals on SkillSwap who would love to connect with you.</p>
<a href="{{.SiteURL}}/browse" style="background-color: #3b82f6; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block; margin: 16px 0;">Browse More Profiles</a>
<p>Keep exploring and connecting!<br>The SkillSwap Team</p>
{{end}}`

var templates = template.Must(template.New("notifications").Parse(templateText))

// Render produces the HTML body for n. siteURL prefixes the links.
func Render(n Notification, siteURL string) (string, error) {
	if !n.Type.Valid() {
		return "", models.NewValidationError("type", fmt.Sprintf("unknown notification type %q", n.Type))
	}

	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, string(n.Type), struct {
		Data    RequestData
		SiteURL template.URL
	}{
		Data:    n.RequestData,
		SiteURL: template.URL(strings.TrimSuffix(siteURL, "/")),
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", n.Type, err)
	}
	return buf.String(), nil
}
