// Package preset holds the curated funnel definitions used by curated-mode
// requests. Ad-hoc funnels are built by callers from discovered event types
// and never touch this registry.
package preset

import (
	"sort"

	"funnel-analytics-service/internal/model"
)

// DefaultFunnelID is the canonical curated funnel.
const DefaultFunnelID = "hospitality_booking"

// Funnel is one curated preset.
type Funnel struct {
	ID    string                 `json:"id"`
	Label string                 `json:"label"`
	Steps []model.StepDefinition `json:"steps"`
}

// Registry resolves preset ids to curated step lists.
type Registry struct {
	funnels map[string]Funnel
}

// NewRegistry builds the registry with the built-in hospitality funnels.
func NewRegistry() *Registry {
	funnels := map[string]Funnel{
		DefaultFunnelID: {
			ID:    DefaultFunnelID,
			Label: "Hospitality Booking Funnel",
			Steps: []model.StepDefinition{
				hospitalityStep("Landed"),
				hospitalityStep("Location Select"),
				hospitalityStep("Date Select"),
				hospitalityStep("Room Select"),
				hospitalityStep("Payment"),
				hospitalityStep("Confirmation"),
			},
		},
		"hospitality_booking_alt": {
			ID:    "hospitality_booking_alt",
			Label: "Booking Journey (Alternate)",
			Steps: []model.StepDefinition{
				labeledStep("Viewed Room", "Room Select"),
				labeledStep("Selected Dates", "Date Select"),
				labeledStep("Add-on Select", "Addon Select"),
				labeledStep("Initiated Checkout", "Payment"),
				labeledStep("Completed Booking", "Confirmation"),
			},
		},
	}
	return &Registry{funnels: funnels}
}

// Lookup returns the steps of a preset.
func (r *Registry) Lookup(id string) ([]model.StepDefinition, bool) {
	f, ok := r.funnels[id]
	if !ok {
		return nil, false
	}
	steps := make([]model.StepDefinition, len(f.Steps))
	copy(steps, f.Steps)
	return steps, true
}

// DefaultID returns the canonical preset id.
func (r *Registry) DefaultID() string { return DefaultFunnelID }

// List returns all presets, stable-ordered by id.
func (r *Registry) List() []Funnel {
	out := make([]Funnel, 0, len(r.funnels))
	for _, f := range r.funnels {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func hospitalityStep(name string) model.StepDefinition {
	return labeledStep(name, name)
}

func labeledStep(label, eventType string) model.StepDefinition {
	return model.StepDefinition{
		Label:         label,
		EventCategory: model.CategoryHospitality,
		EventType:     eventType,
		Filters:       []model.PropertyFilter{},
	}
}
