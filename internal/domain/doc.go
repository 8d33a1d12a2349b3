// Package domain models USGS earthquake feed data and Open-Meteo current
// weather, and holds the pure filter, sort, pagination and statistics
// functions the dashboard is built on.
//
// # Data Sources
//
// Earthquake summaries come from the USGS GeoJSON summary feeds at
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/. Four feeds are
// used, selected by timeframe: all_hour, all_day, all_week and all_month.
// Single events are fetched from the detail endpoint
// (feed/v1.0/detail/<id>.geojson).
//
// Current weather comes from https://api.open-meteo.com/v1/forecast with
// current=temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code.
//
// # USGS GeoJSON Conventions
//
// Each feature carries:
//
//	properties.mag    magnitude, may be null for unreviewed events
//	properties.place  free text, e.g. "10 km SSW of Idyllwild, CA"
//	properties.time   epoch milliseconds, UTC
//	geometry.coordinates  [longitude, latitude, depth_km]
//
// Depth may also be null. Null values are kept as nil pointers so filters and
// sorts can tell "unknown" apart from zero.
//
// # Severity
//
// Magnitudes are bucketed for the dashboard histogram and alert titles:
//
//	low     mag < 4.5
//	medium  4.5 <= mag < 6.0
//	high    mag >= 6.0
//
// # Weather Codes
//
// Open-Meteo reports WMO weather interpretation codes (0 clear sky through
// 99 thunderstorm with heavy hail). DescribeWeatherCode maps them to a
// description and an icon name; unknown codes map to "Unknown".
package domain
