package services

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/dealpipe/wholesale-backend/config"
	"github.com/dealpipe/wholesale-backend/models"
	"github.com/dealpipe/wholesale-backend/shared"
)

type capturingSender struct {
	failures int
	sent     [][]byte
	to       []string
}

func (s *capturingSender) Send(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	s.sent = append(s.sent, msg)
	s.to = append(s.to, to...)
	return nil
}

func testNotifier(sender EmailSender) *NotifierService {
	cfg := &config.Config{
		SMTPServer:     "smtp.example.com",
		SMTPPort:       587,
		SenderEmail:    "deals@example.com",
		SenderPassword: "secret",
	}
	n := NewNotifierService(cfg)
	n.sender = sender
	n.retry = shared.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}
	return n
}

func scoredMatches(count int) []models.ScoredListing {
	matches := make([]models.ScoredListing, 0, count)
	for i := 0; i < count; i++ {
		matches = append(matches, models.ScoredListing{
			Listing: models.Listing{
				ListingID: string(rune('a'+i)) + "00000000000",
				Address:   "123 Main St",
				Price:     "$120,000",
				Link:      "https://example.com/1",
				City:      "Kokomo",
				State:     "IN",
			},
			Score: 90 - i,
		})
	}
	return matches
}

func TestNotifyBuyerDeliversTopMatches(t *testing.T) {
	sender := &capturingSender{}
	notifier := testNotifier(sender)

	buyer := models.Buyer{BuyerID: "buyer0000001", Name: "Jane Investor", Email: "jane@example.com"}
	delivered, err := notifier.NotifyBuyer(context.Background(), &buyer, scoredMatches(3))
	if err != nil {
		t.Fatalf("NotifyBuyer failed: %v", err)
	}
	if len(delivered) != 3 {
		t.Errorf("Expected 3 delivered listing IDs, got %d", len(delivered))
	}
	if len(sender.sent) != 1 {
		t.Fatalf("Expected 1 email, got %d", len(sender.sent))
	}
	if sender.to[0] != "jane@example.com" {
		t.Errorf("Email sent to wrong recipient: %s", sender.to[0])
	}

	body := string(sender.sent[0])
	if !strings.Contains(body, "Jane Investor") {
		t.Error("Expected buyer name in email body")
	}
	if !strings.Contains(body, "123 Main St") {
		t.Error("Expected listing address in email body")
	}
	if !strings.Contains(body, "Content-Type: text/html") {
		t.Error("Expected HTML content type header")
	}
}

func TestNotifyBuyerCapsAtTen(t *testing.T) {
	sender := &capturingSender{}
	notifier := testNotifier(sender)

	buyer := models.Buyer{BuyerID: "buyer0000001", Name: "Jane Investor", Email: "jane@example.com"}
	delivered, err := notifier.NotifyBuyer(context.Background(), &buyer, scoredMatches(15))
	if err != nil {
		t.Fatalf("NotifyBuyer failed: %v", err)
	}
	if len(delivered) != 10 {
		t.Errorf("Expected the digest capped at 10 listings, got %d", len(delivered))
	}
}

func TestNotifyBuyerRetriesTransientFailures(t *testing.T) {
	sender := &capturingSender{failures: 2}
	notifier := testNotifier(sender)

	buyer := models.Buyer{BuyerID: "buyer0000001", Name: "Jane Investor", Email: "jane@example.com"}
	delivered, err := notifier.NotifyBuyer(context.Background(), &buyer, scoredMatches(1))
	if err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if len(delivered) != 1 {
		t.Errorf("Expected 1 delivered listing, got %d", len(delivered))
	}
}

func TestNotifyBuyerFailureReturnsNothingDelivered(t *testing.T) {
	sender := &capturingSender{failures: 10}
	notifier := testNotifier(sender)

	buyer := models.Buyer{BuyerID: "buyer0000001", Name: "Jane Investor", Email: "jane@example.com"}
	delivered, err := notifier.NotifyBuyer(context.Background(), &buyer, scoredMatches(2))
	if err == nil {
		t.Fatal("Expected persistent failure to surface")
	}
	if len(delivered) != 0 {
		t.Errorf("Expected no delivered IDs on failure, got %d", len(delivered))
	}

	var serviceErr *shared.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("Expected a categorized service error, got %T", err)
	}
	if serviceErr.Category != shared.ErrorCategoryNotification {
		t.Errorf("Expected notification category, got %s", serviceErr.Category)
	}
	if !serviceErr.Retryable {
		t.Error("Expected a connection reset to be flagged retryable")
	}
}

func TestNotifyBuyerDisabledWithoutCredentials(t *testing.T) {
	sender := &capturingSender{}
	notifier := testNotifier(sender)
	notifier.cfg.SenderEmail = ""

	buyer := models.Buyer{BuyerID: "buyer0000001", Name: "Jane Investor", Email: "jane@example.com"}
	delivered, err := notifier.NotifyBuyer(context.Background(), &buyer, scoredMatches(2))
	if err != nil {
		t.Fatalf("Disabled notifier should be a no-op, got %v", err)
	}
	if len(delivered) != 0 || len(sender.sent) != 0 {
		t.Error("Disabled notifier must not send or mark anything delivered")
	}
}

func TestNotifyBuyerEscapesScrapedText(t *testing.T) {
	sender := &capturingSender{}
	notifier := testNotifier(sender)

	matches := scoredMatches(1)
	matches[0].Listing.Address = `123 <script>alert("x")</script> St`

	buyer := models.Buyer{BuyerID: "buyer0000001", Name: "Jane Investor", Email: "jane@example.com"}
	if _, err := notifier.NotifyBuyer(context.Background(), &buyer, matches); err != nil {
		t.Fatalf("NotifyBuyer failed: %v", err)
	}
	body := string(sender.sent[0])
	if strings.Contains(body, "<script>") {
		t.Error("Scraped text must be escaped in the email body")
	}
}
