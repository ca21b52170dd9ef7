// Package domain models earthquake event data from the EMSC SeismicPortal.
//
// # Data Source
//
// Events come from the SeismicPortal FDSN event web service at
// https://www.seismicportal.eu/fdsnws/event/1/query. Each response is a
// GeoJSON FeatureCollection; every feature carries a "properties" object and a
// "geometry" point. The fetcher stores features verbatim, so the raw file
// reflects whatever naming the service used at the time of the request.
//
// # Field Conventions
//
// Property names are not stable across records or over time. Each logical
// field is therefore read through an ordered list of candidate keys, and the
// first key present with a non-null value wins:
//
//	source_id  source_id, unid
//	time       time, Time
//	magnitude  Mag, mag, magnitude
//	latitude   lat, Lat, latitude
//	longitude  lon, Lon, longitude
//	depth      depth, Depth
//	region     flynn_region, region, Region
//
// Coordinates:
//
//	When latitude, longitude, or depth are absent from properties they are
//	taken from geometry.coordinates, which must have exactly three elements in
//	[lon, lat, depth] order. Any other length is treated as missing.
//
// Numbers may be JSON numbers or numeric strings ("4.7"). NaN and infinities
// are treated as missing.
//
// Time format:
//
//	ISO-8601 text, e.g. "2024-01-01T07:10:09.5Z". Values without a zone are
//	taken as UTC. Stored times are UTC with microsecond precision.
//
// Region:
//
//	Flinn-Engdahl region name, e.g. "NEAR COAST OF CENTRAL CHILE". Absent
//	regions are kept as NULL; reports show them as "UNKNOWN".
//
// # Cleaning
//
// Rows without latitude, longitude, magnitude, or a parseable time are dropped,
// as are rows outside the ingestion [Window]. Depth, region, and source id are
// optional. Each drop is attributed to a single reason (see [DropReason]) so a
// run can report how much was discarded and why.
package domain
