package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Weather is a current-conditions snapshot. It is replaced wholesale on each
// successful fetch.
type Weather struct {
	Temperature *float64 `json:"temperature"` // °C
	Humidity    *float64 `json:"humidity"`    // %
	WindSpeed   *float64 `json:"wind_speed"`  // km/h
	Code        *int     `json:"weather_code"`
	ObservedAt  string   `json:"observed_at,omitempty"`
}

// weatherResponse is the Open-Meteo forecast body. Only "current" is read.
type weatherResponse struct {
	Current *currentWeather `json:"current"`
}

// currentWeather accepts both the current field names and the legacy
// current_weather ones some mirrors still return.
type currentWeather struct {
	Time             string   `json:"time"`
	Temperature2m    *float64 `json:"temperature_2m"`
	Temperature      *float64 `json:"temperature"`
	RelativeHumidity *float64 `json:"relative_humidity_2m"`
	Humidity         *float64 `json:"humidity"`
	WindSpeed10m     *float64 `json:"wind_speed_10m"`
	WindSpeedLegacy  *float64 `json:"windspeed_10m"`
	WindSpeed        *float64 `json:"wind_speed"`
	WeatherCode      *int     `json:"weather_code"`
	WeatherCodeOld   *int     `json:"weathercode"`
}

// ParseWeather decodes an Open-Meteo body. A body without a "current"
// section is rejected with ErrInvalidPayload.
func ParseWeather(data []byte) (Weather, error) {
	var resp weatherResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Weather{}, fmt.Errorf("parse weather: %w", err)
	}
	if resp.Current == nil {
		return Weather{}, fmt.Errorf("weather: missing current section: %w", ErrInvalidPayload)
	}
	c := resp.Current
	return Weather{
		Temperature: firstFloat(c.Temperature2m, c.Temperature),
		Humidity:    firstFloat(c.RelativeHumidity, c.Humidity),
		WindSpeed:   firstFloat(c.WindSpeed10m, c.WindSpeedLegacy, c.WindSpeed),
		Code:        firstInt(c.WeatherCode, c.WeatherCodeOld),
		ObservedAt:  c.Time,
	}, nil
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// WeatherCodeInfo describes a WMO weather code.
type WeatherCodeInfo struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var weatherCodes = map[int]WeatherCodeInfo{
	0:  {"Clear sky", "fa-sun"},
	1:  {"Mainly clear", "fa-cloud-sun"},
	2:  {"Partly cloudy", "fa-cloud"},
	3:  {"Overcast", "fa-cloud"},
	45: {"Foggy", "fa-smog"},
	48: {"Depositing rime fog", "fa-smog"},
	51: {"Light drizzle", "fa-cloud-rain"},
	53: {"Moderate drizzle", "fa-cloud-rain"},
	55: {"Dense drizzle", "fa-cloud-showers-heavy"},
	61: {"Slight rain", "fa-cloud-rain"},
	63: {"Moderate rain", "fa-cloud-showers-heavy"},
	65: {"Heavy rain", "fa-cloud-showers-heavy"},
	71: {"Slight snow", "fa-snowflake"},
	73: {"Moderate snow", "fa-snowflake"},
	75: {"Heavy snow", "fa-snowflake"},
	80: {"Slight rain showers", "fa-cloud-showers-heavy"},
	81: {"Moderate rain showers", "fa-cloud-showers-heavy"},
	82: {"Violent rain showers", "fa-cloud-showers-heavy"},
	95: {"Thunderstorm", "fa-bolt"},
	96: {"Thunderstorm with slight hail", "fa-bolt"},
	99: {"Thunderstorm with heavy hail", "fa-bolt"},
}

// DescribeWeatherCode maps a WMO code to a description and icon.
func DescribeWeatherCode(code *int) WeatherCodeInfo {
	if code != nil {
		if info, ok := weatherCodes[*code]; ok {
			return info
		}
	}
	return WeatherCodeInfo{Description: "Unknown", Icon: "fa-question"}
}

// WeatherDisplay is the formatted view of a Weather snapshot. Missing values
// render as "--".
type WeatherDisplay struct {
	Temperature  string `json:"temperature"`
	TemperatureF string `json:"temperature_f"`
	Humidity     string `json:"humidity"`
	WindSpeed    string `json:"wind_speed"`
	WindSpeedMph string `json:"wind_speed_mph"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	Code         *int   `json:"code"`
	Timestamp    string `json:"timestamp,omitempty"`
}

const missingValue = "--"

// FormatWeather renders a snapshot for display.
func FormatWeather(w Weather) WeatherDisplay {
	info := DescribeWeatherCode(w.Code)
	d := WeatherDisplay{
		Temperature:  missingValue,
		TemperatureF: missingValue,
		Humidity:     missingValue,
		WindSpeed:    missingValue,
		WindSpeedMph: missingValue,
		Description:  info.Description,
		Icon:         info.Icon,
		Code:         w.Code,
		Timestamp:    w.ObservedAt,
	}
	if w.Temperature != nil {
		d.Temperature = fmt.Sprintf("%d°C", int(math.Round(*w.Temperature)))
		d.TemperatureF = fmt.Sprintf("%d°F", int(math.Round(*w.Temperature*9/5+32)))
	}
	if w.Humidity != nil {
		d.Humidity = fmt.Sprintf("%g%%", *w.Humidity)
	}
	if w.WindSpeed != nil {
		d.WindSpeed = fmt.Sprintf("%d km/h", int(math.Round(*w.WindSpeed)))
		d.WindSpeedMph = fmt.Sprintf("%d mph", int(math.Round(*w.WindSpeed*0.621371)))
	}
	return d
}
