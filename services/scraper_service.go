package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dealpipe/wholesale-backend/config"
	"github.com/dealpipe/wholesale-backend/models"
	"github.com/dealpipe/wholesale-backend/shared"
	"github.com/sirupsen/logrus"
)

// Source is one scrapable listing site. Fetch returns only valid
// listings already filtered to the price ceiling; a partial page is a
// valid (shorter) result, not an error.
type Source interface {
	Name() string
	Fetch(ctx context.Context, city config.City) ([]models.Listing, error)
}

// ScraperService owns the shared scraping machinery: the HTTP client,
// one rate limiter per source, user agent rotation, and the retry
// policy applied to every page fetch.
type ScraperService struct {
	cfg        *config.Config
	httpClient *http.Client
	limiters   map[string]*shared.RequestWindowRateLimiter
	retry      shared.RetryPolicy
	metrics    *shared.ServiceMetrics
	sources    []Source

	userAgentCounter uint64
}

// NewScraperService creates the scraper with all supported sources
// registered.
func NewScraperService(cfg *config.Config) *ScraperService {
	s := &ScraperService{
		cfg:        cfg,
		httpClient: shared.NewScrapingHTTPClient(30 * time.Second),
		limiters:   make(map[string]*shared.RequestWindowRateLimiter),
		retry:      shared.DefaultRetryPolicy(),
		metrics:    shared.NewServiceMetrics("scraper"),
	}
	s.sources = []Source{
		newZillowSource(s),
		newRealtyTracSource(s),
		newAuctionSource(s),
		newRealtorSource(s),
	}
	for _, source := range s.sources {
		s.limiters[source.Name()] = shared.NewRequestWindowRateLimiter(source.Name(), cfg.RequestsPerMinute)
	}
	return s
}

// Sources returns the registered sources in a fixed order.
func (s *ScraperService) Sources() []Source {
	return s.sources
}

// Metrics exposes the scraper's counters for the cycle summary.
func (s *ScraperService) Metrics() *shared.ServiceMetrics {
	return s.metrics
}

// ScrapeCity runs one source against one city. Source failures are
// returned to the caller, which logs and continues with other sources.
// Listings gathered before the failure are returned alongside the error
// so a cancelled scrape still yields its partial results.
func (s *ScraperService) ScrapeCity(ctx context.Context, source Source, city config.City) ([]models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	listings, err := source.Fetch(ctx, city)
	s.metrics.RecordRequest(err == nil, time.Since(start))

	if err != nil {
		return listings, fmt.Errorf("%s scrape failed for %s, %s: %w", source.Name(), city.Name, city.State, err)
	}

	logrus.WithFields(logrus.Fields{
		"source":   source.Name(),
		"city":     city.Name,
		"state":    city.State,
		"listings": len(listings),
	}).Info("Source scrape complete")
	return listings, nil
}

// waitForSlot blocks until the source's rate limiter admits a request.
func (s *ScraperService) waitForSlot(ctx context.Context, sourceName string) error {
	limiter, ok := s.limiters[sourceName]
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// nextUserAgent rotates through the browser user agent pool.
func (s *ScraperService) nextUserAgent() string {
	index := atomic.AddUint64(&s.userAgentCounter, 1)
	return shared.BrowserUserAgents[index%uint64(len(shared.BrowserUserAgents))]
}

// fetchDocument performs a rate-limited, retried GET and parses the
// response body into a queryable document.
func (s *ScraperService) fetchDocument(ctx context.Context, sourceName, pageURL string) (*goquery.Document, error) {
	if err := s.waitForSlot(ctx, sourceName); err != nil {
		return nil, err
	}

	var document *goquery.Document
	err := s.retry.Do(ctx, fmt.Sprintf("fetch %s page", sourceName), func() error {
		request, requestError := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if requestError != nil {
			return fmt.Errorf("failed to build request: %w", requestError)
		}
		shared.SetBrowserLikeHeaders(request, s.nextUserAgent())

		httpResponse, requestError := s.httpClient.Do(request)
		if requestError != nil {
			return fmt.Errorf("request failed: %w", requestError)
		}
		defer httpResponse.Body.Close()

		if httpResponse.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d from %s", httpResponse.StatusCode, pageURL)
		}

		document, requestError = goquery.NewDocumentFromReader(httpResponse.Body)
		if requestError != nil {
			return fmt.Errorf("failed to parse page: %w", requestError)
		}
		return nil
	})
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryNetwork, "scraper", "fetch page", shared.IsRetryableError(err))
	}
	return document, nil
}

// buildListing assembles a listing from scraped card fields, applying
// the price ceiling and the validity gate. Returns false when the card
// should be dropped.
func (s *ScraperService) buildListing(address, price, link, propertyType, beds, baths, sqft, sourceName string, city config.City) (models.Listing, bool) {
	parsedPrice := ExtractPrice(price)
	if parsedPrice == nil || *parsedPrice >= s.cfg.MaxPriceCeiling {
		s.metrics.IncrementCounter("cards_over_ceiling")
		return models.Listing{}, false
	}

	listing := models.Listing{
		Address:      strings.TrimSpace(address),
		Price:        strings.TrimSpace(price),
		Link:         strings.TrimSpace(link),
		Date:         time.Now().Format("2006-01-02"),
		Contacted:    "No",
		Interested:   "Unknown",
		PropertyType: propertyType,
		Bedrooms:     orSentinel(beds),
		Bathrooms:    orSentinel(baths),
		Sqft:         orSentinel(sqft),
		YearBuilt:    "N/A",
		Source:       sourceName,
		City:         city.Name,
		State:        city.State,
	}

	if !IsValidListing(&listing) {
		s.metrics.IncrementCounter("cards_invalid")
		return models.Listing{}, false
	}
	listing.ListingID = DeriveListingID(listing.Address, listing.Source, listing.Date)
	s.metrics.IncrementCounter("listings_accepted")
	return listing, true
}

// resolveLink turns site-relative hrefs into absolute URLs.
func resolveLink(baseURL, href string) string {
	if href == "" {
		return "#"
	}
	if !strings.HasPrefix(href, "/") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// orSentinel normalizes a missing scraped field to the N/A placeholder.
func orSentinel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "N/A"
	}
	return value
}

// textOrNA returns the trimmed text of the first node matching any of
// the selectors, or N/A when none match.
func textOrNA(selection *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		found := selection.Find(selector).First()
		if found.Length() > 0 {
			if text := strings.TrimSpace(found.Text()); text != "" {
				return text
			}
		}
	}
	return "N/A"
}

// hrefOrHash returns the href of the first matching anchor, or the
// invalid-link placeholder.
func hrefOrHash(selection *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		found := selection.Find(selector).First()
		if href, exists := found.Attr("href"); exists && href != "" {
			return href
		}
	}
	return "#"
}
