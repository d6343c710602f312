package services

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/dealpipe/wholesale-backend/config"
	"github.com/dealpipe/wholesale-backend/models"
	"github.com/dealpipe/wholesale-backend/shared"
	"github.com/sirupsen/logrus"
)

// maxListingsPerEmail caps the digest so buyer inboxes stay readable.
const maxListingsPerEmail = 10

// EmailSender abstracts SMTP delivery so tests can capture messages.
type EmailSender interface {
	Send(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

type smtpSender struct{}

func (smtpSender) Send(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	return smtp.SendMail(addr, auth, from, to, msg)
}

// NotifierService delivers match digests to buyers over SMTP. When no
// credentials are configured the service is disabled and every send is
// a logged no-op.
type NotifierService struct {
	cfg    *config.Config
	sender EmailSender
	retry  shared.RetryPolicy
}

// NewNotifierService creates a notifier from the loaded configuration.
func NewNotifierService(cfg *config.Config) *NotifierService {
	return &NotifierService{
		cfg:    cfg,
		sender: smtpSender{},
		retry:  shared.DefaultRetryPolicy(),
	}
}

// Enabled reports whether the notifier can actually deliver email.
func (n *NotifierService) Enabled() bool {
	return n.cfg.NotificationsEnabled()
}

// NotifyBuyer emails a buyer their pending matches and returns the
// listing IDs that were delivered. The caller flips the notified flag
// only for those IDs, so a failed send leaves matches pending.
func (n *NotifierService) NotifyBuyer(ctx context.Context, buyer *models.Buyer, matches []models.ScoredListing) ([]string, error) {
	if len(matches) == 0 {
		return nil, nil
	}
	if !n.Enabled() {
		logrus.WithField("buyer", buyer.Name).Info("Notifications disabled, skipping email")
		return nil, nil
	}

	if len(matches) > maxListingsPerEmail {
		matches = matches[:maxListingsPerEmail]
	}

	subject := fmt.Sprintf("New Property Matches - %d Properties Found", len(matches))
	body := n.renderDigest(buyer, matches)
	message := buildMIMEMessage(n.cfg.SenderEmail, buyer.Email, subject, body)

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPServer, n.cfg.SMTPPort)
	auth := smtp.PlainAuth("", n.cfg.SenderEmail, n.cfg.SenderPassword, n.cfg.SMTPServer)

	err := n.retry.Do(ctx, "send notification email", func() error {
		return n.sender.Send(addr, auth, n.cfg.SenderEmail, []string{buyer.Email}, message)
	})
	if err != nil {
		serviceErr := shared.WrapError(err, shared.ErrorCategoryNotification, "notifier", "send email",
			shared.IsRetryableError(err))
		serviceErr.LogError()
		return nil, serviceErr
	}

	delivered := make([]string, 0, len(matches))
	for _, match := range matches {
		delivered = append(delivered, match.Listing.ListingID)
	}

	logrus.WithFields(logrus.Fields{
		"buyer":    buyer.Name,
		"listings": len(delivered),
	}).Info("Notification email sent")
	return delivered, nil
}

// renderDigest produces the HTML body. Scraped text is escaped since
// source sites are untrusted input.
func (n *NotifierService) renderDigest(buyer *models.Buyer, matches []models.ScoredListing) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2>Hello %s,</h2>", html.EscapeString(buyer.Name)))
	b.WriteString(fmt.Sprintf("<p>We found %d new properties matching your criteria:</p>", len(matches)))

	for _, match := range matches {
		l := match.Listing
		b.WriteString(`<div style="border:1px solid #ddd; margin:10px 0; padding:10px;">`)
		b.WriteString(fmt.Sprintf("<h3>%s</h3>", html.EscapeString(l.Address)))
		b.WriteString(fmt.Sprintf("<p><strong>Price:</strong> %s<br>", html.EscapeString(l.Price)))
		b.WriteString(fmt.Sprintf("<strong>Location:</strong> %s, %s<br>",
			html.EscapeString(l.City), html.EscapeString(l.State)))
		b.WriteString(fmt.Sprintf("<strong>Beds/Baths:</strong> %s / %s<br>",
			html.EscapeString(l.Bedrooms), html.EscapeString(l.Bathrooms)))
		b.WriteString(fmt.Sprintf("<strong>Sqft:</strong> %s<br>", html.EscapeString(l.Sqft)))
		b.WriteString(fmt.Sprintf("<strong>Source:</strong> %s<br>", html.EscapeString(l.Source)))
		b.WriteString(fmt.Sprintf("<strong>Match Score:</strong> %d/100</p>", match.Score))
		b.WriteString(fmt.Sprintf(`<a href="%s">View Listing</a>`, html.EscapeString(l.Link)))
		b.WriteString("</div>")
	}

	b.WriteString("<p>Reply to this email if you would like more details on any property.</p>")
	b.WriteString("</body></html>")
	return b.String()
}

// buildMIMEMessage assembles a single-part HTML email.
func buildMIMEMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
