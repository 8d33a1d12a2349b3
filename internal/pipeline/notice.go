package pipeline

import "time"

// Level is the severity of a user-facing notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a message for the user, the service's stand-in for a toast.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const (
	MsgEarthquakeFetchFailed = "Failed to load earthquake data. Please refresh the page."
	MsgWeatherFetchFailed    = "Failed to load weather data. Will retry shortly."
	MsgUsingCachedData       = "Unable to refresh. Showing cached earthquake data."
	MsgLoadFailed            = "Unable to load earthquake data. Check your connection and retry."
	MsgOffline               = "No internet connection. Using cached data."
	MsgOnline                = "Connection restored. Refreshing data..."
	MsgRefreshed             = "Data refreshed"
)

// maxNotices bounds how many recent notices a snapshot carries.
const maxNotices = 10
