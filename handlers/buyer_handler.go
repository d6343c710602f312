package handlers

import (
	"github.com/dealpipe/wholesale-backend/services"
	"github.com/gofiber/fiber/v2"
)

type BuyerHandler struct {
	Store *services.StoreService
}

func NewBuyerHandler(store *services.StoreService) *BuyerHandler {
	return &BuyerHandler{Store: store}
}

// GetBuyers returns all active buyer profiles.
func (h *BuyerHandler) GetBuyers(c *fiber.Ctx) error {
	buyers, err := h.Store.ListActiveBuyers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    buyers,
		"count":   len(buyers),
	})
}

// GetPendingMatches returns a buyer's unnotified matches, best score
// first.
func (h *BuyerHandler) GetPendingMatches(c *fiber.Ctx) error {
	buyerID := c.Params("buyer_id")
	if buyerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "buyer_id is required",
		})
	}

	matches, err := h.Store.UnnotifiedMatches(c.Context(), buyerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    matches,
		"count":   len(matches),
	})
}
