package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dealpipe/wholesale-backend/models"
	"github.com/sirupsen/logrus"
)

// MatchRecorder receives qualifying matches. The store satisfies it in
// production; tests substitute an in-memory recorder.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, match *models.Match) error
}

// MatcherService scores listings against buyer criteria. Scoring is a
// pure function of the two records so the same inputs always produce
// the same matches.
type MatcherService struct {
	minQualifyingScore int
}

// NewMatcherService creates a matcher with the standard qualifying
// threshold of 50 points.
func NewMatcherService() *MatcherService {
	return &MatcherService{minQualifyingScore: 50}
}

// Evaluate scores one listing against one buyer. It returns whether the
// listing qualifies at all and, if so, a confidence score in [0, 100].
//
// Price and (when the buyer has preferences) location are hard gates.
// The remaining criteria only add or withhold points:
//
//	location match  +30  (+10 when the buyer has no area preference)
//	type match      +20  (+10 when the buyer has no type preference)
//	beds   met/unparsable  +15 / +5
//	baths  met/unparsable  +15 / +5
//	sqft   met/unparsable  +10 / +5
func (m *MatcherService) Evaluate(buyer *models.Buyer, listing *models.Listing) (bool, int) {
	if !buyer.Active {
		return false, 0
	}

	price := ExtractPrice(listing.Price)
	if price == nil || *price == 0 {
		return false, 0
	}
	if *price < buyer.MinPrice || *price > buyer.MaxPrice {
		return false, 0
	}

	score := 0

	if len(buyer.PreferredAreas) > 0 {
		location := strings.ToLower(fmt.Sprintf("%s %s", listing.City, listing.State))
		address := strings.ToLower(listing.Address)
		matched := false
		for _, area := range buyer.PreferredAreas {
			needle := strings.ToLower(area)
			if strings.Contains(location, needle) || strings.Contains(address, needle) {
				matched = true
				break
			}
		}
		if !matched {
			return false, 0
		}
		score += 30
	} else {
		score += 10
	}

	if len(buyer.PropertyTypes) > 0 {
		for _, propertyType := range buyer.PropertyTypes {
			if listing.PropertyType == propertyType {
				score += 20
				break
			}
		}
	} else {
		score += 10
	}

	if beds := ExtractInteger(listing.Bedrooms); beds == nil {
		score += 5
	} else if *beds >= buyer.MinBedrooms {
		score += 15
	}

	if baths := ExtractDecimal(listing.Bathrooms); baths == nil {
		score += 5
	} else if *baths >= buyer.MinBathrooms {
		score += 15
	}

	if sqft := ExtractInteger(listing.Sqft); sqft == nil {
		score += 5
	} else if *sqft >= buyer.MinSqft {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return true, score
}

// MatchesForBuyer scores every listing for one buyer and returns the
// qualifying ones above the threshold, best first. Ties break on
// listing ID so the ordering is reproducible.
func (m *MatcherService) MatchesForBuyer(buyer *models.Buyer, listings []models.Listing) []models.ScoredListing {
	var scored []models.ScoredListing
	for i := range listings {
		qualifies, score := m.Evaluate(buyer, &listings[i])
		if qualifies && score > m.minQualifyingScore {
			scored = append(scored, models.ScoredListing{Listing: listings[i], Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Listing.ListingID < scored[j].Listing.ListingID
	})
	return scored
}

// MatchAll runs the full cross product of buyers and listings and
// records every qualifying match. A recording failure for one pair is
// logged and does not stop the rest.
func (m *MatcherService) MatchAll(ctx context.Context, buyers []models.Buyer, listings []models.Listing, recorder MatchRecorder) (int, error) {
	recorded := 0
	for i := range buyers {
		if err := ctx.Err(); err != nil {
			return recorded, err
		}
		matches := m.MatchesForBuyer(&buyers[i], listings)
		for _, match := range matches {
			record := &models.Match{
				ListingID: match.Listing.ListingID,
				BuyerID:   buyers[i].BuyerID,
				Score:     match.Score,
			}
			if err := recorder.RecordMatch(ctx, record); err != nil {
				logrus.WithFields(logrus.Fields{
					"listing_id": record.ListingID,
					"buyer_id":   record.BuyerID,
				}).Warnf("Failed to record match: %v", err)
				continue
			}
			recorded++
		}
		logrus.WithFields(logrus.Fields{
			"buyer":   buyers[i].Name,
			"matches": len(matches),
		}).Info("Buyer matching complete")
	}
	return recorded, nil
}
