package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/dealpipe/wholesale-backend/config"
	"github.com/dealpipe/wholesale-backend/models"
)

var (
	auctionBedsPattern  = regexp.MustCompile(`(?i)(\d+)\s*bed`)
	auctionBathsPattern = regexp.MustCompile(`(?i)([\d.]+)\s*bath`)
	auctionSqftPattern  = regexp.MustCompile(`(?i)([\d,]+)\s*sq`)
)

// auctionSource scrapes Auction.com residential search results. Bed,
// bath, and sqft come as one free-text details blob that needs pattern
// extraction.
type auctionSource struct {
	scraper *ScraperService
}

func newAuctionSource(scraper *ScraperService) *auctionSource {
	return &auctionSource{scraper: scraper}
}

func (a *auctionSource) Name() string { return "Auction.com" }

func (a *auctionSource) Fetch(ctx context.Context, city config.City) ([]models.Listing, error) {
	searchURL := fmt.Sprintf(
		"https://www.auction.com/residential/search?searchType=Residential&state=%s&city=%s",
		city.State, url.QueryEscape(city.Name))

	document, err := a.scraper.fetchDocument(ctx, a.Name(), searchURL)
	if err != nil {
		return nil, err
	}

	cards := document.Find("div[class*='property-card']")
	if cards.Length() == 0 {
		cards = document.Find("article[class*='property']")
	}

	var listings []models.Listing
	var loopErr error
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if err := ctx.Err(); err != nil {
			loopErr = err
			return false
		}

		address := textOrNA(card, "[class*='address']")
		price := textOrNA(card, "[class*='price']")
		link := resolveLink("https://www.auction.com", hrefOrHash(card, "a"))

		beds, baths, sqft := "N/A", "N/A", "N/A"
		if details := card.Find("[class*='details']").First(); details.Length() > 0 {
			text := details.Text()
			if match := auctionBedsPattern.FindStringSubmatch(text); match != nil {
				beds = fmt.Sprintf("%s bd", match[1])
			}
			if match := auctionBathsPattern.FindStringSubmatch(text); match != nil {
				baths = fmt.Sprintf("%s ba", match[1])
			}
			if match := auctionSqftPattern.FindStringSubmatch(text); match != nil {
				sqft = fmt.Sprintf("%s sqft", match[1])
			}
		}

		if listing, ok := a.scraper.buildListing(address, price, link, "Auction", beds, baths, sqft, a.Name(), city); ok {
			listings = append(listings, listing)
		}
		return true
	})
	if loopErr != nil {
		return listings, loopErr
	}
	return listings, nil
}
