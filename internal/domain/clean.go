package domain

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
)

// Drop reason labels used in reports and metrics.
const (
	ReasonMalformed        = "malformed"
	ReasonMissingLatitude  = "missing_latitude"
	ReasonMissingLongitude = "missing_longitude"
	ReasonMissingMagnitude = "missing_magnitude"
	ReasonMissingTime      = "missing_time"
	ReasonInvalidTime      = "invalid_time"
	ReasonOutsideWindow    = "outside_window"
)

// DropReason maps a Normalize error to its reason label.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingLatitude):
		return ReasonMissingLatitude
	case errors.Is(err, ErrMissingLongitude):
		return ReasonMissingLongitude
	case errors.Is(err, ErrMissingMagnitude):
		return ReasonMissingMagnitude
	case errors.Is(err, ErrMissingTime):
		return ReasonMissingTime
	case errors.Is(err, ErrInvalidTime):
		return ReasonInvalidTime
	case errors.Is(err, ErrOutsideWindow):
		return ReasonOutsideWindow
	default:
		return ReasonMalformed
	}
}

// DropReport summarizes one cleaning pass.
type DropReport struct {
	Read     int
	Kept     int
	ByReason map[string]int
}

// Dropped is the number of rows rejected for any reason.
func (r DropReport) Dropped() int {
	return r.Read - r.Kept
}

// Reasons returns the reason labels with at least one drop, sorted.
func (r DropReport) Reasons() []string {
	return slices.Sorted(maps.Keys(r.ByReason))
}

// Clean decodes and normalizes every raw feature, keeping input order.
func Clean(raws []json.RawMessage, w Window) ([]Event, DropReport) {
	report := DropReport{Read: len(raws), ByReason: make(map[string]int)}
	events := make([]Event, 0, len(raws))

	for _, data := range raws {
		raw, err := ParseRawEvent(data)
		if err != nil {
			report.ByReason[ReasonMalformed]++
			continue
		}
		ev, err := Normalize(raw, w)
		if err != nil {
			report.ByReason[DropReason(err)]++
			continue
		}
		events = append(events, ev)
	}

	report.Kept = len(events)
	return events, report
}
