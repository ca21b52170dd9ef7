package domain

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Candidate property keys per logical field, highest priority first.
var (
	SourceIDKeys  = []string{"source_id", "unid"}
	TimeKeys      = []string{"time", "Time"}
	MagnitudeKeys = []string{"Mag", "mag", "magnitude"}
	LatitudeKeys  = []string{"lat", "Lat", "latitude"}
	LongitudeKeys = []string{"lon", "Lon", "longitude"}
	DepthKeys     = []string{"depth", "Depth"}
	RegionKeys    = []string{"flynn_region", "region", "Region"}
)

// Row-level rejection reasons. Normalize returns exactly one of these.
var (
	ErrMalformed        = errors.New("malformed event")
	ErrMissingLatitude  = errors.New("missing latitude")
	ErrMissingLongitude = errors.New("missing longitude")
	ErrMissingMagnitude = errors.New("missing magnitude")
	ErrMissingTime      = errors.New("missing time")
	ErrInvalidTime      = errors.New("unparseable time")
	ErrOutsideWindow    = errors.New("time outside window")
)

// timeLayouts are tried in order; layouts without a zone parse as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Normalize converts a raw feature into an Event, or reports why it cannot be kept.
func Normalize(raw RawEvent, w Window) (Event, error) {
	props := raw.Properties

	lat, ok := floatField(props, LatitudeKeys)
	if !ok {
		lat, ok = coordinate(raw.Geometry, 1)
	}
	if !ok {
		return Event{}, ErrMissingLatitude
	}

	lon, ok := floatField(props, LongitudeKeys)
	if !ok {
		lon, ok = coordinate(raw.Geometry, 0)
	}
	if !ok {
		return Event{}, ErrMissingLongitude
	}

	mag, ok := floatField(props, MagnitudeKeys)
	if !ok {
		return Event{}, ErrMissingMagnitude
	}

	v, ok := lookup(props, TimeKeys)
	if !ok {
		return Event{}, ErrMissingTime
	}
	t, err := ParseTime(v)
	if err != nil {
		return Event{}, err
	}
	if !w.Contains(t) {
		return Event{}, ErrOutsideWindow
	}

	ev := Event{
		SourceID:  stringField(props, SourceIDKeys),
		Time:      t,
		Latitude:  lat,
		Longitude: lon,
		Magnitude: mag,
		Region:    stringField(props, RegionKeys),
	}
	if depth, ok := floatField(props, DepthKeys); ok {
		ev.Depth = &depth
	} else if depth, ok := coordinate(raw.Geometry, 2); ok {
		ev.Depth = &depth
	}
	return ev, nil
}

// ParseTime parses an ISO-8601 value into a UTC time truncated to microseconds.
// Non-string values are rejected.
func ParseTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, ErrInvalidTime
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, ErrInvalidTime
}

// lookup returns the value of the first key present with a non-null value.
func lookup(props map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := props[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func floatField(props map[string]any, keys []string) (float64, bool) {
	v, ok := lookup(props, keys)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// stringField returns the first candidate holding non-blank text. Blank and
// non-text values fall through to the next key.
func stringField(props map[string]any, keys []string) *string {
	for _, k := range keys {
		if s, ok := text(props[k]); ok {
			return &s
		}
	}
	return nil
}

func text(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = strings.TrimSpace(x)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		s = x.String()
	default:
		return "", false
	}
	return s, s != ""
}

func coordinate(g *Geometry, i int) (float64, bool) {
	if g == nil || len(g.Coordinates) != 3 {
		return 0, false
	}
	if g.Coordinates[i] == nil {
		return 0, false
	}
	return toFloat(g.Coordinates[i])
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
