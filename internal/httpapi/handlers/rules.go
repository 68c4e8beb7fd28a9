package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mt-monitoring/alarmd/internal/models"
	"github.com/mt-monitoring/alarmd/internal/store"
)

// RuleHandler mirrors the CLI's read-only verbs (list, active) over HTTP,
// per SPEC_FULL §13: "dashboards that should not need file-level access
// to the SQLite database."
type RuleHandler struct {
	store *store.Store
}

func NewRuleHandler(st *store.Store) *RuleHandler {
	return &RuleHandler{store: st}
}

// List handles GET /rules[?device=<id>].
func (h *RuleHandler) List(c *fiber.Ctx) error {
	deviceID := c.Query("device")
	rules, err := h.store.Rules.List(deviceID, false)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"rules": rules})
}

// Active handles GET /rules/active: states with status in {active, triggered}.
func (h *RuleHandler) Active(c *fiber.Ctx) error {
	states, err := h.store.States.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	active := make([]*models.AlarmState, 0, len(states))
	for _, s := range states {
		if s.Status == models.StatusActive || s.Status == models.StatusTriggered {
			active = append(active, s)
		}
	}
	return c.JSON(fiber.Map{"states": active})
}
