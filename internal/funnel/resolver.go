package funnel

import (
	"funnel-analytics-service/internal/model"
)

// PresetRegistry maps preset ids to curated step lists. Presets are owned
// by an external config collaborator; the engine only reads them.
type PresetRegistry interface {
	Lookup(id string) ([]model.StepDefinition, bool)
	DefaultID() string
}

// ResolveSteps produces the ordered step list to evaluate.
//
//   - ad-hoc: the provided steps verbatim; empty means "no funnel to
//     compute", which the caller must treat as an empty result, not an error.
//   - curated: the provided steps if any, else the preset (falling back to
//     the registry default when the id is unknown or empty).
//   - any other mode behaves like curated with no provided steps.
func ResolveSteps(reg PresetRegistry, mode string, provided []model.StepDefinition, presetID string) []model.StepDefinition {
	switch mode {
	case model.ModeAdHoc:
		if len(provided) == 0 {
			return nil
		}
		return provided
	case model.ModeCurated:
		if len(provided) > 0 {
			return provided
		}
	}

	if presetID == "" {
		presetID = reg.DefaultID()
	}
	if steps, ok := reg.Lookup(presetID); ok {
		return steps
	}
	if steps, ok := reg.Lookup(reg.DefaultID()); ok {
		return steps
	}
	return nil
}
