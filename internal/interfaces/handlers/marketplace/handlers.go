package marketplace

import (
	mktsvc "carbonmarket-backend/internal/application/marketplace"
	"carbonmarket-backend/internal/interfaces/handlers/request"
	"carbonmarket-backend/internal/pkg/response"
	"carbonmarket-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *mktsvc.Service
}

type cancelBody struct {
	SellerAddress string `json:"sellerAddress"`
}

// CreateListing POST /api/v1/marketplace/listings
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	var req mktsvc.CreateListingRequest
	if err := request.Bind(c, &req); err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.CreateListing(c.Context(), req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing)
}

// ListListings GET /api/v1/marketplace/listings?status=&sellerAddress=&creditId=
func (h *Handlers) ListListings(c *fiber.Ctx) error {
	items, err := h.Service.List(c.Context(), repository.ListingFilter{
		Status:        request.Query(c, "status"),
		SellerAddress: request.Query(c, "sellerAddress"),
		CreditID:      uint(c.QueryInt("creditId", 0)),
		Page:          request.Page(c),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", items)
}

// GetListing GET /api/v1/marketplace/listings/:id
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", listing)
}

// Buy POST /api/v1/marketplace/listings/:id/buy
func (h *Handlers) Buy(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req mktsvc.BuyRequest
	if err := request.Bind(c, &req); err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.Buy(c.Context(), id, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Credits purchased", out)
}

// Cancel POST /api/v1/marketplace/listings/:id/cancel
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body cancelBody
	if err := request.Bind(c, &body); err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.Cancel(c.Context(), id, body.SellerAddress)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing cancelled", listing)
}

// Trades GET /api/v1/marketplace/listings/:id/trades
func (h *Handlers) Trades(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	items, err := h.Service.Trades(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", items)
}
