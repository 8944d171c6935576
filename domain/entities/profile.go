package entities

// PersonalInfo is the per-device personal profile the persona can draw on.
// One record per device, fully overwritten on save.
type PersonalInfo struct {
	DeviceID    string `json:"device_id"`
	Name        string `json:"name"`
	Age         string `json:"age"`
	Location    string `json:"location"`
	Occupation  string `json:"occupation"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Hobbies     string `json:"hobbies"`
	Personality string `json:"personality"`
	Preferences string `json:"preferences"`
}

// ThemeMode is the UI theme preference persisted under the "theme" key.
type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

func (m ThemeMode) Valid() bool {
	return m == ThemeLight || m == ThemeDark
}
