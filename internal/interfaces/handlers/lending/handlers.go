package lending

import (
	lendsvc "carbonmarket-backend/internal/application/lending"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/interfaces/handlers/request"
	"carbonmarket-backend/internal/pkg/response"
	"carbonmarket-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *lendsvc.Service
}

type collateralBody struct {
	AdditionalAmount decimal.Decimal `json:"additionalAmount"`
}

type repayBody struct {
	RepayAmount decimal.Decimal `json:"repayAmount"`
}

type liquidateBody struct {
	LiquidatorAddress string `json:"liquidatorAddress"`
}

type thresholdBody struct {
	LiquidationThreshold decimal.Decimal `json:"liquidationThreshold"`
}

// GET /api/v1/lending/positions?userAddress=&status=&limit=&offset=
func (h *Handlers) ListPositions(c *fiber.Ctx) error {
	items, err := h.Service.List(c.Context(), repository.PositionFilter{
		UserAddress: request.Query(c, "userAddress"),
		Status:      request.Query(c, "status"),
		Page:        request.Page(c),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", items)
}

// POST /api/v1/lending/positions
func (h *Handlers) OpenPosition(c *fiber.Ctx) error {
	var req lendsvc.OpenRequest
	if err := request.Bind(c, &req); err != nil {
		return response.FromError(c, err)
	}
	pos, err := h.Service.Open(c.Context(), req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Lending position opened", pos)
}

// GET /api/v1/lending/positions/:id
func (h *Handlers) GetPosition(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	pos, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", pos)
}

// POST /api/v1/lending/positions/:id/collateral
func (h *Handlers) AddCollateral(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body collateralBody
	if err := request.Bind(c, &body); err != nil {
		return response.FromError(c, err)
	}
	pos, err := h.Service.AddCollateral(c.Context(), id, body.AdditionalAmount)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Collateral added", pos)
}

// POST /api/v1/lending/positions/:id/repay
func (h *Handlers) Repay(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body repayBody
	if err := request.Bind(c, &body); err != nil {
		return response.FromError(c, err)
	}
	pos, err := h.Service.Repay(c.Context(), id, body.RepayAmount)
	if err != nil {
		return response.FromError(c, err)
	}
	message := "Loan partially repaid"
	if pos.Status == domain.PositionStatusClosed {
		message = "Loan fully repaid"
	}
	return response.Success(c, message, pos)
}

// POST /api/v1/lending/positions/:id/liquidate
func (h *Handlers) Liquidate(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body liquidateBody
	if err := request.Bind(c, &body); err != nil {
		return response.FromError(c, err)
	}
	pos, err := h.Service.Liquidate(c.Context(), id, body.LiquidatorAddress)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Position liquidated", pos)
}

// POST /api/v1/lending/positions/:id/threshold
func (h *Handlers) UpdateThreshold(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body thresholdBody
	if err := request.Bind(c, &body); err != nil {
		return response.FromError(c, err)
	}
	pos, err := h.Service.UpdateThreshold(c.Context(), id, body.LiquidationThreshold)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Liquidation threshold updated", pos)
}

// GET /api/v1/lending/stats
func (h *Handlers) Stats(c *fiber.Ctx) error {
	stats, err := h.Service.Stats(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", stats)
}

// GET /api/v1/lending/users/:address/positions
func (h *Handlers) UserPositions(c *fiber.Ctx) error {
	items, err := h.Service.UserPositions(c.Context(), c.Params("address"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", items)
}
