package domain

import "slices"

// YearCount is a per-year event count.
type YearCount struct {
	Year  int   `json:"year" csv:"year"`
	Count int64 `json:"count" csv:"count"`
}

// RegionRank is one entry of a year's most active regions.
type RegionRank struct {
	Year   int    `json:"year" csv:"year"`
	Rank   int    `json:"rank" csv:"rank"`
	Region string `json:"region" csv:"region"`
	Count  int64  `json:"count" csv:"count"`
}

// SeasonCount is an event count for a meteorological season.
type SeasonCount struct {
	Season string `json:"season" csv:"season"`
	Count  int64  `json:"count" csv:"count"`
}

// UnknownRegion replaces NULL regions in aggregates.
const UnknownRegion = "UNKNOWN"

// SeasonMonths lists the months of one meteorological season.
type SeasonMonths struct {
	Name   string
	Months []int
}

// Seasons is the month-to-season mapping used by every seasonal aggregate.
var Seasons = []SeasonMonths{
	{Name: "Winter", Months: []int{12, 1, 2}},
	{Name: "Spring", Months: []int{3, 4, 5}},
	{Name: "Summer", Months: []int{6, 7, 8}},
	{Name: "Fall", Months: []int{9, 10, 11}},
}

// Season names the meteorological season of a month (1-12).
func Season(month int) string {
	for _, s := range Seasons {
		if slices.Contains(s.Months, month) {
			return s.Name
		}
	}
	return ""
}
