package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dealpipe/wholesale-backend/config"
	"github.com/dealpipe/wholesale-backend/models"
)

// realtorSource scrapes Realtor.com foreclosure search results. The
// search URL itself pre-filters to single family homes under the price
// ceiling; the local ceiling check still applies as a backstop.
type realtorSource struct {
	scraper *ScraperService
}

func newRealtorSource(scraper *ScraperService) *realtorSource {
	return &realtorSource{scraper: scraper}
}

func (r *realtorSource) Name() string { return "Realtor.com" }

func (r *realtorSource) Fetch(ctx context.Context, city config.City) ([]models.Listing, error) {
	searchURL := fmt.Sprintf(
		"https://www.realtor.com/realestateandhomes-search/%s_%s/type-single-family-home/price-na-200000/show-foreclosures",
		strings.ReplaceAll(city.Name, " ", "-"), city.State)

	document, err := r.scraper.fetchDocument(ctx, r.Name(), searchURL)
	if err != nil {
		return nil, err
	}

	cards := document.Find("li[data-testid*='result-card']")
	if cards.Length() == 0 {
		cards = document.Find("div[class*='PropertyCard']")
	}

	var listings []models.Listing
	var loopErr error
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if err := ctx.Err(); err != nil {
			loopErr = err
			return false
		}

		address := textOrNA(card, "div[data-testid='card-address']", "[class*='address']")
		price := textOrNA(card, "div[data-testid='card-price']", "[class*='price']")
		link := resolveLink("https://www.realtor.com",
			hrefOrHash(card, "a[data-testid='property-anchor']", "a"))

		beds, baths, sqft := "N/A", "N/A", "N/A"
		card.Find("ul[data-testid='property-meta'] li").Each(func(_ int, item *goquery.Selection) {
			text := strings.TrimSpace(item.Text())
			lower := strings.ToLower(text)
			switch {
			case strings.Contains(lower, "bed"):
				beds = text
			case strings.Contains(lower, "bath"):
				baths = text
			case strings.Contains(lower, "sqft"):
				sqft = text
			}
		})

		if listing, ok := r.scraper.buildListing(address, price, link, "Foreclosure", beds, baths, sqft, r.Name(), city); ok {
			listings = append(listings, listing)
		}
		return true
	})
	if loopErr != nil {
		return listings, loopErr
	}
	return listings, nil
}
