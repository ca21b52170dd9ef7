package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent is a single feature as returned by the event service. Nothing in it
// is guaranteed to be present or well-typed.
type RawEvent struct {
	Properties map[string]any `json:"properties"`
	Geometry   *Geometry      `json:"geometry"`
}

// Geometry holds the GeoJSON point of a feature.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates []any  `json:"coordinates"` // [lon, lat, depth]
}

// ParseRawEvent decodes one raw feature.
func ParseRawEvent(data []byte) (RawEvent, error) {
	var raw RawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return raw, nil
}

// Event is the normalized earthquake row persisted to the snapshot and table.
type Event struct {
	SourceID  *string   `json:"source_id"`
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Depth     *float64  `json:"depth"`
	Magnitude float64   `json:"magnitude"`
	Region    *string   `json:"region"`
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// YearWindow returns [Jan 1 startYear, Jan 1 endYear+1) in UTC.
func YearWindow(startYear, endYear int) Window {
	return Window{
		Start: time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear+1, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// DefaultWindow is the 2020 through 2025 ingestion window.
func DefaultWindow() Window {
	return YearWindow(2020, 2025)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
