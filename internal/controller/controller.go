package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"funnel-analytics-service/internal/model"
	"funnel-analytics-service/internal/service"
)

type FunnelController interface {
	ComputeFunnel(c *fiber.Ctx) error
	GetPresets(c *fiber.Ctx) error
	GetEventTypes(c *fiber.Ctx) error
	GetFriction(c *fiber.Ctx) error
	ComputeLatency(c *fiber.Ctx) error
	ComputePriceSensitivity(c *fiber.Ctx) error
	ComputePaths(c *fiber.Ctx) error
	ComputeCohortRecovery(c *fiber.Ctx) error
}

type funnelController struct {
	funnelService   service.FunnelService
	metadataService service.MetadataService
}

// NewFunnelController builds a FunnelController.
func NewFunnelController(funnelSvc service.FunnelService, metadataSvc service.MetadataService) FunnelController {
	return &funnelController{funnelService: funnelSvc, metadataService: metadataSvc}
}

// ComputeFunnel runs the main funnel computation.
func (h *funnelController) ComputeFunnel(c *fiber.Ctx) error {
	var req model.FunnelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json payload")
	}

	resp, err := h.funnelService.ComputeFunnel(c.Context(), req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(resp)
}

// GetPresets lists the curated funnel presets.
func (h *funnelController) GetPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"presets": h.funnelService.ListPresets()})
}

// GetEventTypes returns discovered event types for the ad-hoc builder.
func (h *funnelController) GetEventTypes(c *fiber.Ctx) error {
	types, err := h.metadataService.DiscoverEventTypes(c.Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"event_types": types})
}

// GetFriction returns problematic UI elements for a funnel step.
func (h *funnelController) GetFriction(c *fiber.Ctx) error {
	stepName := utils.Trim(c.Query("step_name"), ' ')
	if stepName == "" {
		return fiber.NewError(fiber.StatusBadRequest, "step_name is required")
	}

	points, err := h.funnelService.GetFrictionPoints(c.Context(), stepName)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"step": stepName, "friction_points": points})
}

// ComputeLatency returns step-transition timing percentiles.
func (h *funnelController) ComputeLatency(c *fiber.Ctx) error {
	var req model.FunnelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json payload")
	}

	latencies, err := h.funnelService.ComputeLatency(c.Context(), req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": latencies})
}

// ComputePriceSensitivity returns price exposure stats per step.
func (h *funnelController) ComputePriceSensitivity(c *fiber.Ctx) error {
	var req model.FunnelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json payload")
	}

	stats, err := h.funnelService.ComputePriceSensitivity(c.Context(), req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": stats})
}

type stepScopedRequest struct {
	model.FunnelRequest
	Step int `json:"step"`
}

// ComputePaths buckets where entities went after dropping at a step.
func (h *funnelController) ComputePaths(c *fiber.Ctx) error {
	var req stepScopedRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json payload")
	}

	analysis, err := h.funnelService.ComputeDropOffPaths(c.Context(), req.FunnelRequest, req.Step)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(analysis)
}

// ComputeCohortRecovery reports drop-off recovery within the extended
// window.
func (h *funnelController) ComputeCohortRecovery(c *fiber.Ctx) error {
	var req stepScopedRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json payload")
	}

	recovery, err := h.funnelService.ComputeCohortRecovery(c.Context(), req.FunnelRequest, req.Step)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(recovery)
}

func mapServiceError(err error) error {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return fiber.NewError(fiber.StatusBadRequest, validationErr.Message)
	}

	var storeErr *service.StoreError
	if errors.As(err, &storeErr) {
		return fiber.NewError(fiber.StatusBadGateway, "event store unavailable")
	}

	return fiber.NewError(fiber.StatusInternalServerError, "funnel computation failed")
}
