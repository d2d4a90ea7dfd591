package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Category names known to the organizer. The set mirrors the library layout.
const (
	CategoryNoType      = "No Type"
	CategoryMovies      = "Movies"
	CategoryMovieSeries = "Movie Series"
	CategoryHomeVideo   = "Home Video"
	CategoryOther       = "Other"
	CategoryAudiobooks  = "Audiobooks"
)

// KnownCategories lists every category seeded into the database, in display order
var KnownCategories = []string{
	CategoryNoType,
	CategoryMovies,
	CategoryMovieSeries,
	CategoryHomeVideo,
	CategoryOther,
	CategoryAudiobooks,
}

// Cleanup policies for finished remote downloads
const (
	CleanupManual         = 0
	CleanupAfterOneHour   = 1
	defaultArrRecheckHour = 24
)

// CategoryConfig is the configured policy for one category
type CategoryConfig struct {
	Name      string
	Action    string // "Nothing", "Copy" or "Move"
	TargetDir string
}

// Config holds all application configuration
type Config struct {
	// TorBox
	TorBoxAPIKey    string
	TorBoxHost      string
	TorBoxAPI       string
	TorBoxSearchAPI string

	// Torznab (optional search provider, replaces TorBox search when set)
	TorznabURL string
	TorznabKey string

	// aria2 local fetch
	Aria2Host   string
	Aria2Port   int
	Aria2Secret string
	Aria2Dir    string

	// Stash library rescans
	StashHost    string
	StashPort    int
	StashAPIKey  string
	StashRootDir string

	// Organizer switches
	OrganizeMovies         bool
	OrganizeMovieSeries    bool
	RescanStashOnHomeVideo bool
	CleanActiveDownloads   int
	ArrRecheckHours        int
	Categories             []CategoryConfig

	// Server
	ServerPort string

	// Paths
	QueueDir      string // $CONFIG_DIR/queue unless QUEUE_DIR is set
	BlacklistFile string // $CONFIG_DIR/blacklist.txt
	DatabaseFile  string // $CONFIG_DIR/torboxarr.db

	// Logging
	LogLevel      string
	LogPath       string
	LogMaxSize    int
	LogMaxBackups int
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	setDefaults()

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "torboxarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	queueDir := viper.GetString("QUEUE_DIR")
	if queueDir == "" {
		queueDir = filepath.Join(configDir, "queue")
	}

	config := &Config{
		TorBoxAPIKey:    viper.GetString("TORBOX_API_KEY"),
		TorBoxHost:      viper.GetString("TORBOX_HOST"),
		TorBoxAPI:       viper.GetString("TORBOX_API"),
		TorBoxSearchAPI: viper.GetString("TORBOX_SEARCH_API"),

		TorznabURL: viper.GetString("TORZNAB_URL"),
		TorznabKey: viper.GetString("TORZNAB_KEY"),

		Aria2Host:   viper.GetString("ARIA2_HOST"),
		Aria2Port:   viper.GetInt("ARIA2_PORT"),
		Aria2Secret: viper.GetString("ARIA2_SECRET"),
		Aria2Dir:    viper.GetString("ARIA2_DIR"),

		StashHost:    viper.GetString("STASH_HOST"),
		StashPort:    viper.GetInt("STASH_PORT"),
		StashAPIKey:  viper.GetString("STASH_API_KEY"),
		StashRootDir: viper.GetString("STASH_ROOT_DIR"),

		OrganizeMovies:         viper.GetBool("ORGANIZE_MOVIES"),
		OrganizeMovieSeries:    viper.GetBool("ORGANIZE_MOVIE_SERIES"),
		RescanStashOnHomeVideo: viper.GetBool("RESCAN_STASH_ON_HOME_VIDEO"),
		CleanActiveDownloads:   viper.GetInt("CLEAN_ACTIVE_DOWNLOADS_POLICY"),
		ArrRecheckHours:        viper.GetInt("ARR_RECHECK_HOURS"),
		Categories:             loadCategories(),

		ServerPort: viper.GetString("SERVER_PORT"),

		QueueDir:      queueDir,
		BlacklistFile: filepath.Join(configDir, "blacklist.txt"),
		DatabaseFile:  filepath.Join(configDir, "torboxarr.db"),

		LogLevel:      viper.GetString("LOG_LEVEL"),
		LogPath:       viper.GetString("LOG_PATH"),
		LogMaxSize:    viper.GetInt("LOG_MAX_SIZE"),
		LogMaxBackups: viper.GetInt("LOG_MAX_BACKUPS"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("TORBOX_HOST", "torbox.app")
	viper.SetDefault("TORBOX_API", "api")
	viper.SetDefault("TORBOX_SEARCH_API", "search-api")
	viper.SetDefault("ARIA2_HOST", "localhost")
	viper.SetDefault("ARIA2_PORT", 6800)
	viper.SetDefault("ARIA2_DIR", "/downloads")
	viper.SetDefault("STASH_HOST", "localhost")
	viper.SetDefault("STASH_PORT", 9999)
	viper.SetDefault("ORGANIZE_MOVIES", true)
	viper.SetDefault("ORGANIZE_MOVIE_SERIES", true)
	viper.SetDefault("RESCAN_STASH_ON_HOME_VIDEO", false)
	viper.SetDefault("CLEAN_ACTIVE_DOWNLOADS_POLICY", CleanupManual)
	viper.SetDefault("ARR_RECHECK_HOURS", defaultArrRecheckHour)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_MAX_SIZE", 50)
	viper.SetDefault("LOG_MAX_BACKUPS", 3)

	for _, name := range KnownCategories {
		viper.SetDefault(envKey(name, "ACTION"), "Nothing")
		viper.SetDefault(envKey(name, "DIR"), "")
	}
}

// loadCategories reads <NAME>_ACTION and <NAME>_DIR for every known category,
// e.g. MOVIE_SERIES_ACTION=Move and MOVIE_SERIES_DIR=/media/series
func loadCategories() []CategoryConfig {
	categories := make([]CategoryConfig, 0, len(KnownCategories))
	for _, name := range KnownCategories {
		categories = append(categories, CategoryConfig{
			Name:      name,
			Action:    viper.GetString(envKey(name, "ACTION")),
			TargetDir: viper.GetString(envKey(name, "DIR")),
		})
	}
	return categories
}

func envKey(category, suffix string) string {
	return strings.ToUpper(strings.ReplaceAll(category, " ", "_")) + "_" + suffix
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.TorBoxAPIKey == "" {
		return fmt.Errorf("TORBOX_API_KEY is required")
	}
	if c.CleanActiveDownloads != CleanupManual && c.CleanActiveDownloads != CleanupAfterOneHour {
		return fmt.Errorf("CLEAN_ACTIVE_DOWNLOADS_POLICY must be %d or %d, got %d",
			CleanupManual, CleanupAfterOneHour, c.CleanActiveDownloads)
	}
	if c.ArrRecheckHours <= 0 {
		return fmt.Errorf("ARR_RECHECK_HOURS must be positive, got %d", c.ArrRecheckHours)
	}
	for _, cat := range c.Categories {
		switch cat.Action {
		case "Nothing":
		case "Copy", "Move":
			if cat.TargetDir == "" {
				return fmt.Errorf("category %q uses %s but has no target directory", cat.Name, cat.Action)
			}
		default:
			return fmt.Errorf("category %q has unknown action %q", cat.Name, cat.Action)
		}
	}
	return nil
}
