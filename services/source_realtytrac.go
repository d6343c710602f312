package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dealpipe/wholesale-backend/config"
	"github.com/dealpipe/wholesale-backend/models"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// realtyTracSource scrapes RealtyTrac foreclosure search results. The
// listing markup is plain server-rendered HTML, either a results table
// or item divs depending on the page variant.
type realtyTracSource struct {
	scraper *ScraperService
}

func newRealtyTracSource(scraper *ScraperService) *realtyTracSource {
	return &realtyTracSource{scraper: scraper}
}

func (r *realtyTracSource) Name() string { return "RealtyTrac" }

func (r *realtyTracSource) Fetch(ctx context.Context, city config.City) ([]models.Listing, error) {
	searchURL := fmt.Sprintf("https://www.realtytrac.com/mapsearch/sold/in/%s-%s/",
		strings.ToLower(strings.ReplaceAll(city.Name, " ", "-")), strings.ToLower(city.State))

	if err := r.scraper.waitForSlot(ctx, r.Name()); err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.UserAgent(r.scraper.nextUserAgent()),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(30 * time.Second)

	var listings []models.Listing

	handleRow := func(element *colly.HTMLElement) {
		if ctx.Err() != nil {
			return
		}

		address := childTextOrNA(element, "td.address", "[class*='address']")
		price := childTextOrNA(element, "td.price", "[class*='price']")
		link := element.ChildAttr("a", "href")
		if link == "" {
			link = "#"
		} else {
			link = element.Request.AbsoluteURL(link)
		}

		propertyType, beds, baths, sqft := "N/A", "N/A", "N/A", "N/A"
		cells := element.ChildTexts("td")
		if len(cells) > 2 {
			propertyType = strings.TrimSpace(cells[2])
		}
		if len(cells) > 3 {
			beds = strings.TrimSpace(cells[3])
		}
		if len(cells) > 4 {
			baths = strings.TrimSpace(cells[4])
		}
		if len(cells) > 5 {
			sqft = strings.TrimSpace(cells[5])
		}
		if propertyType == "" || propertyType == "N/A" {
			propertyType = "Foreclosure"
		}

		if listing, ok := r.scraper.buildListing(address, price, link, propertyType, beds, baths, sqft, r.Name(), city); ok {
			listings = append(listings, listing)
		}
	}
	collector.OnHTML("tr[class*='property']", handleRow)
	collector.OnHTML("div[class*='property-item']", handleRow)
	collector.OnError(func(response *colly.Response, err error) {
		logrus.WithFields(logrus.Fields{
			"source": r.Name(),
			"status": response.StatusCode,
		}).Warnf("Page fetch failed: %v", err)
	})

	err := r.scraper.retry.Do(ctx, "fetch RealtyTrac page", func() error {
		listings = listings[:0]
		if visitErr := collector.Visit(searchURL); visitErr != nil {
			return fmt.Errorf("failed to fetch %s: %w", searchURL, visitErr)
		}
		collector.Wait()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return listings, err
	}
	return listings, nil
}

// childTextOrNA returns the trimmed text of the first selector that
// yields content, or the N/A placeholder.
func childTextOrNA(element *colly.HTMLElement, selectors ...string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(element.ChildText(selector)); text != "" {
			return text
		}
	}
	return "N/A"
}
