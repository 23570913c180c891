package model

import (
	"time"
)

// Event is one recorded clickstream interaction as stored in raw_events.
// Events are immutable once written; the engine only ever reads them.
type Event struct {
	EventID           string
	SessionID         string
	UserID            string
	Timestamp         time.Time
	EventType         string
	FunnelStep        uint8
	PageURL           string
	PageCategory      string
	ElementSelector   string
	DeviceType        string
	GuestSegment      string
	Location          string
	PriceViewedAmount float64
	TimeOnPageSeconds float64
	Props             map[string]interface{}
}

// Field resolves a property by its column name. Well-known columns are
// served from struct fields; anything else falls through to Props.
func (e Event) Field(name string) (interface{}, bool) {
	switch name {
	case "event_id":
		return e.EventID, true
	case "session_id":
		return e.SessionID, true
	case "user_id":
		return e.UserID, true
	case "event_type":
		return e.EventType, true
	case "funnel_step":
		return float64(e.FunnelStep), true
	case "page_url":
		return e.PageURL, true
	case "page_category":
		return e.PageCategory, true
	case "element_selector":
		return e.ElementSelector, true
	case "device_type":
		return e.DeviceType, true
	case "guest_segment":
		return e.GuestSegment, true
	case "location":
		return e.Location, true
	case "price_viewed_amount":
		return e.PriceViewedAmount, true
	case "time_on_page_seconds":
		return e.TimeOnPageSeconds, true
	}
	v, ok := e.Props[name]
	return v, ok
}

// SessionEvents groups one session's events, sorted by timestamp ascending.
// A session is the unit whose events are temporally ordered, so it is the
// entity the sequential matcher walks.
type SessionEvents struct {
	SessionID string
	UserID    string
	GroupKey  string
	Events    []Event
}
