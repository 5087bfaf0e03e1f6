package config

import "time"

// Matching preference defaults. DistanceUnlimited is the sentinel for
// "no distance cap"; the server treats any non-positive value the same way.
const (
	GenderAny              = "any"
	DefaultPreferredGender = GenderAny
	DistanceUnlimited      = 0
)

// Config is the persisted client record. It is loaded once at startup and
// saved after registration and after any preference or entitlement change.
// ClientID is assigned by the server on first registration and reused on
// every reconnect until the file is cleared.
type Config struct {
	ClientID  string  `mapstructure:"client_id" yaml:"client_id"`
	ServerURL string  `mapstructure:"server_url" yaml:"server_url"`
	Latitude  float64 `mapstructure:"latitude" yaml:"latitude"`
	Longitude float64 `mapstructure:"longitude" yaml:"longitude"`

	Gender          string `mapstructure:"gender" yaml:"gender"`
	PreferredGender string `mapstructure:"preferred_gender" yaml:"preferred_gender"`
	MaxDistanceKm   int    `mapstructure:"max_distance_km" yaml:"max_distance_km"`

	Points                int        `mapstructure:"points" yaml:"points"`
	PreferenceActiveUntil *time.Time `mapstructure:"preference_active_until" yaml:"preference_active_until"`

	AutoJoinQueue bool   `mapstructure:"auto_join_queue" yaml:"auto_join_queue"`
	ArchivePath   string `mapstructure:"archive_path" yaml:"archive_path"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:       "http://localhost:5115",
		Latitude:        37.5642135,
		Longitude:       127.0016985,
		Gender:          "male",
		PreferredGender: DefaultPreferredGender,
		MaxDistanceKm:   DistanceUnlimited,
		AutoJoinQueue:   true,
		ArchivePath:     "driftchat.db",
		LogLevel:        "info",
	}
}

// PreferenceIsDefault reports whether the stored matching preference is still
// at its defaults (any partner gender, no distance cap).
func (c Config) PreferenceIsDefault() bool {
	return c.PreferredGender == DefaultPreferredGender && c.MaxDistanceKm == DistanceUnlimited
}
