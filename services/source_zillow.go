package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/dealpipe/wholesale-backend/config"
	"github.com/dealpipe/wholesale-backend/models"
	"github.com/sirupsen/logrus"
)

// zillowSource scrapes Zillow foreclosure search results. Zillow renders
// listing cards client-side, so pages go through a headless browser
// instead of the plain HTTP client.
type zillowSource struct {
	scraper *ScraperService
}

func newZillowSource(scraper *ScraperService) *zillowSource {
	return &zillowSource{scraper: scraper}
}

func (z *zillowSource) Name() string { return "Zillow" }

func (z *zillowSource) Fetch(ctx context.Context, city config.City) ([]models.Listing, error) {
	searchURL := fmt.Sprintf("https://www.zillow.com/homes/%s-%s_rb/",
		strings.ReplaceAll(city.Name, " ", "-"), city.State)

	if err := z.scraper.waitForSlot(ctx, z.Name()); err != nil {
		return nil, err
	}

	pageHTML, err := z.renderPage(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	document, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered page: %w", err)
	}

	cards := document.Find("article[class*='list-card']")
	if cards.Length() == 0 {
		cards = document.Find("div[data-test='property-card']")
	}
	logrus.WithFields(logrus.Fields{
		"source": z.Name(),
		"cards":  cards.Length(),
	}).Debug("Found potential property cards")

	var listings []models.Listing
	var loopErr error
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if err := ctx.Err(); err != nil {
			loopErr = err
			return false
		}

		address := textOrNA(card, "address", "a[data-test='property-card-addr']")
		price := textOrNA(card, "span[data-test='property-card-price']", "div[class*='list-card-price']")
		link := resolveLink("https://www.zillow.com",
			hrefOrHash(card, "a[data-test='property-card-link']", "a[class*='list-card-link']"))

		beds, baths, sqft := "N/A", "N/A", "N/A"
		card.Find("ul[class*='list-card-details'] li").Each(func(_ int, item *goquery.Selection) {
			text := strings.TrimSpace(item.Text())
			lower := strings.ToLower(text)
			switch {
			case strings.Contains(lower, "bd"):
				beds = text
			case strings.Contains(lower, "ba"):
				baths = text
			case strings.Contains(lower, "sqft"):
				sqft = text
			}
		})

		if listing, ok := z.scraper.buildListing(address, price, link, "Foreclosure", beds, baths, sqft, z.Name(), city); ok {
			listings = append(listings, listing)
		}
		return true
	})
	if loopErr != nil {
		return listings, loopErr
	}
	return listings, nil
}

// renderPage loads the URL in a headless browser tab and returns the
// settled DOM. Each retry attempt gets a fresh tab since a failed
// navigation can leave the old one unusable.
func (z *zillowSource) renderPage(ctx context.Context, pageURL string) (string, error) {
	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(z.scraper.nextUserAgent()),
	)
	allocatorCtx, cancelAllocator := chromedp.NewExecAllocator(ctx, allocatorOptions...)
	defer cancelAllocator()

	var pageHTML string
	err := z.scraper.retry.Do(ctx, "render Zillow page", func() error {
		tabCtx, cancelTab := chromedp.NewContext(allocatorCtx)
		defer cancelTab()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 60*time.Second)
		defer cancelTimeout()

		return chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.WaitReady("body"),
			chromedp.Sleep(2*time.Second),
			chromedp.OuterHTML("html", &pageHTML),
		)
	})
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", pageURL, err)
	}
	return pageHTML, nil
}
