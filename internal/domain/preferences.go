package domain

// Keys under which user preferences persist across sessions.
const (
	PrefTheme         = "disasterwatch_theme"
	PrefLocation      = "disasterwatch_location"
	PrefNotifications = "disasterwatch_notifications"
	PrefFilters       = "disasterwatch_filters"
	PrefLastVisit     = "disasterwatch_last_visit"
)

// Theme is the dashboard colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}
