package service

import "strings"

// locationMap converts UI location names to the values stored on sessions.
var locationMap = map[string]string{
	"Wisconsin":  "wisconsin_dells",
	"Pocono":     "pocono_mountains",
	"Sandusky":   "sandusky_ohio",
	"Round Rock": "round_rock_texas",
}

// NormalizeLocation converts a UI location name to its database value.
// "All Locations" (or empty) means no location filter.
func NormalizeLocation(uiLocation string) string {
	if uiLocation == "" || uiLocation == "All Locations" {
		return ""
	}
	if db, ok := locationMap[uiLocation]; ok {
		return db
	}
	return strings.ReplaceAll(strings.ToLower(uiLocation), " ", "_")
}
