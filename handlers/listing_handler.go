package handlers

import (
	"github.com/dealpipe/wholesale-backend/services"
	"github.com/gofiber/fiber/v2"
)

type ListingHandler struct {
	Store *services.StoreService
}

func NewListingHandler(store *services.StoreService) *ListingHandler {
	return &ListingHandler{Store: store}
}

// GetListings returns stored listings, newest first. The limit query
// parameter caps the result (default 100).
func (h *ListingHandler) GetListings(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit < 0 {
		limit = 100
	}

	listings, err := h.Store.ListListings(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    listings,
		"count":   len(listings),
	})
}

// GetStats returns the aggregate pipeline counters.
func (h *ListingHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.Store.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}
