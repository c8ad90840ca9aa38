package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mailtpl "github.com/oksasatya/account-lifecycle/pkg/mailer/templates"
)

// ErrPermanent marks failures that redelivery cannot fix (bad payload, bad
// template). Consumers should drop these instead of requeueing.
var ErrPermanent = errors.New("permanent email failure")

// Process decodes a queued job, renders its template and sends it.
func Process(ctx context.Context, s Sender, body []byte) error {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return errors.Join(ErrPermanent, fmt.Errorf("decode job: %w", err))
	}
	job.Normalize()
	if err := job.Validate(); err != nil {
		return errors.Join(ErrPermanent, err)
	}

	subject, text, html := job.Subject, job.Text, job.HTML
	if job.Template != "" {
		s, t, h, err := mailtpl.Render(job.Template, job.Data)
		if err != nil {
			return errors.Join(ErrPermanent, fmt.Errorf("render %s: %w", job.Template, err))
		}
		subject, text, html = s, t, h
	}

	if err := s.Send(ctx, job.To, subject, text, html); err != nil {
		return fmt.Errorf("send to %s: %w", job.To, err)
	}
	return nil
}
