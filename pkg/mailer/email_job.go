package mailer

import (
	"errors"
	"strings"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Html is optional; Text is recommended as fallback.
// You can also use a template by specifying Template and Data.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // e.g. "verify_email"
	Data     map[string]any `json:"data,omitempty"`
}

var ErrInvalidJob = errors.New("invalid email job")

// Normalize fills the recipient fields templates expect from To, and To from
// Data when a producer only set the template data.
func (j *EmailJob) Normalize() {
	j.To = strings.TrimSpace(j.To)
	if j.Data == nil {
		j.Data = map[string]any{}
	}
	if j.To == "" {
		if v, ok := j.Data["RecipientEmail"].(string); ok {
			j.To = strings.TrimSpace(v)
		}
	}
	if _, ok := j.Data["RecipientEmail"]; !ok && j.To != "" {
		j.Data["RecipientEmail"] = j.To
	}
	if _, ok := j.Data["Email"]; !ok && j.To != "" {
		j.Data["Email"] = j.To
	}
}

// Validate reports whether the job can be rendered and sent.
func (j *EmailJob) Validate() error {
	if j.To == "" {
		return errors.Join(ErrInvalidJob, errors.New("missing recipient"))
	}
	if j.Template == "" && j.Text == "" && j.HTML == "" {
		return errors.Join(ErrInvalidJob, errors.New("no template or body"))
	}
	return nil
}
