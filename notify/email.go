package notify

import (
	"fmt"
	"strings"

	"github.com/resend/resend-go/v3"
	"github.com/rs/zerolog/log"

	"license-watch-go/db"
)

// EmailNotifier sends a failure digest after sweeps that hit errors.
type EmailNotifier struct {
	client   *resend.Client
	from     string
	fromName string
	to       string
}

// NewEmailNotifier returns nil when the API key or recipient is unset.
func NewEmailNotifier(apiKey, from, fromName, to string) *EmailNotifier {
	if apiKey == "" || to == "" {
		return nil
	}
	return &EmailNotifier{
		client:   resend.NewClient(apiKey),
		from:     from,
		fromName: fromName,
		to:       to,
	}
}

// FailureDigest emails the per-license errors of a finished sweep. It is
// a no-op for clean runs so operators only hear about problems.
func (n *EmailNotifier) FailureDigest(job *db.Job) error {
	if n == nil || (job.ErrorCount == 0 && job.Status != db.JobFailed) {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>License verification sweep %s</h2>", job.Status)
	fmt.Fprintf(&b, "<p>Job <code>%s</code>: %d/%d processed, %d auto-verified, %d review tasks, %d errors.</p>",
		job.ID, job.Processed, job.TotalLicenses, job.AutoVerified, job.TasksCreated, job.ErrorCount)

	if len(job.Errors) > 0 {
		b.WriteString("<ul>")
		for _, e := range job.Errors {
			if e.LicenseID > 0 {
				fmt.Fprintf(&b, "<li>license %d: %s</li>", e.LicenseID, e.Message)
			} else {
				fmt.Fprintf(&b, "<li>%s</li>", e.Message)
			}
		}
		b.WriteString("</ul>")
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", n.fromName, n.from),
		To:      []string{n.to},
		Subject: fmt.Sprintf("License sweep %s: %d errors", job.Status, job.ErrorCount),
		Html:    b.String(),
	}

	sent, err := n.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("notify: send digest: %w", err)
	}
	log.Debug().Str("email_id", sent.Id).Str("job_id", job.ID).Msg("failure digest sent")
	return nil
}
