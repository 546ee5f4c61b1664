package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/ankurauti1234/Events-Dashboard/internal/auth"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
)

const (
	DefaultAPIURL          = "https://apmapis.webdevava.live/api"
	DefaultLogoBaseURL     = "https://apm-logo-bucket.s3.ap-south-1.amazonaws.com"
	DefaultRefreshInterval = 30 * time.Second
	DefaultChartsInterval  = 10 * time.Minute
	DefaultTheme           = "system"
)

// Keys persisted in the config file
const (
	KeyAPIURL          = "api_url"
	KeyLogoBaseURL     = "logo_base_url"
	KeyTimezone        = "timezone"
	KeyTheme           = "theme"
	KeyRefreshInterval = "refresh_interval"
	KeyDBPath          = "db_path"
	KeySession         = "session"
)

// Themes accepted by the theme preference.
var Themes = []string{"light", "dark", "system"}

// Settings is the resolved view of the configuration used by commands.
type Settings struct {
	APIURL          string
	LogoBaseURL     string
	Timezone        string
	Theme           string
	RefreshInterval time.Duration
	DBPath          string
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig(cfgFile string) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".apm" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".apm")
	}

	viper.SetEnvPrefix("APM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing file is fine: defaults apply until the first login writes one.
	_ = viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault(KeyAPIURL, DefaultAPIURL)
	viper.SetDefault(KeyLogoBaseURL, DefaultLogoBaseURL)
	viper.SetDefault(KeyTimezone, timezone.Default)
	viper.SetDefault(KeyTheme, DefaultTheme)
	viper.SetDefault(KeyRefreshInterval, DefaultRefreshInterval)
	viper.SetDefault(KeyDBPath, defaultDBPath())
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".apm", "apm.db")
	}
	return filepath.Join(home, ".apm", "apm.db")
}

// Load resolves the current settings.
func Load() Settings {
	s := Settings{
		APIURL:          strings.TrimRight(viper.GetString(KeyAPIURL), "/"),
		LogoBaseURL:     strings.TrimRight(viper.GetString(KeyLogoBaseURL), "/"),
		Timezone:        viper.GetString(KeyTimezone),
		Theme:           viper.GetString(KeyTheme),
		RefreshInterval: viper.GetDuration(KeyRefreshInterval),
		DBPath:          viper.GetString(KeyDBPath),
	}
	if !timezone.Known(s.Timezone) {
		s.Timezone = timezone.Default
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = DefaultRefreshInterval
	}
	return s
}

// LoadSession returns the persisted session, which may be empty.
func LoadSession() auth.Session {
	return auth.Session{
		Token:  viper.GetString(KeySession + ".token"),
		Name:   viper.GetString(KeySession + ".name"),
		Role:   viper.GetString(KeySession + ".role"),
		Email:  viper.GetString(KeySession + ".email"),
		Expiry: viper.GetInt64(KeySession + ".expiry"),
	}
}

// SaveSession updates the config file with the new session
func SaveSession(s auth.Session) error {
	viper.Set(KeySession+".token", s.Token)
	viper.Set(KeySession+".name", s.Name)
	viper.Set(KeySession+".role", s.Role)
	viper.Set(KeySession+".email", s.Email)
	viper.Set(KeySession+".expiry", s.Expiry)
	return write()
}

// ClearSession drops the stored credentials, keeping the other preferences.
func ClearSession() error {
	return SaveSession(auth.Session{})
}

// Set validates and persists a single preference.
func Set(key, value string) error {
	switch key {
	case KeyTimezone:
		if !timezone.Known(value) {
			return fmt.Errorf("unknown timezone %q (choose one of: %s)", value, strings.Join(timezone.Names(), ", "))
		}
		viper.Set(key, value)
	case KeyTheme:
		if !lo.Contains(Themes, value) {
			return fmt.Errorf("unknown theme %q (choose one of: %s)", value, strings.Join(Themes, ", "))
		}
		viper.Set(key, value)
	case KeyRefreshInterval:
		d, err := time.ParseDuration(value)
		if err != nil || d < time.Second {
			return fmt.Errorf("invalid refresh interval %q: must be a duration of at least 1s", value)
		}
		viper.Set(key, d.String())
	case KeyAPIURL, KeyLogoBaseURL:
		viper.Set(key, strings.TrimRight(value, "/"))
	case KeyDBPath:
		viper.Set(key, value)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return write()
}

// Keys lists the settable preferences in display order.
func Keys() []string {
	return []string{KeyAPIURL, KeyLogoBaseURL, KeyTimezone, KeyTheme, KeyRefreshInterval, KeyDBPath}
}

func write() error {
	// Ensure the file exists before writing
	if err := viper.WriteConfig(); err != nil {
		// If file doesn't exist, create it
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return viper.SafeWriteConfig()
		}
		// If it exists but failed to write, try writing to default path
		home, _ := os.UserHomeDir()
		path := filepath.Join(home, ".apm.yaml")
		return viper.WriteConfigAs(path)
	}
	return nil
}
