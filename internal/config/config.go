// Package config defines the typed configuration record for crate and the
// viper-backed loader that decodes it, honoring the precedence flag > env
// (CRATE_ prefix) > config file > default.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// OrgMode is the organization-engine mode selector (spec §4.4).
type OrgMode string

const (
	ModeArtist OrgMode = "artist"
	ModeLabel  OrgMode = "label"
	ModeSeries OrgMode = "series"
	ModeHybrid OrgMode = "hybrid"
)

// ProviderConfig is the per-provider enrichment configuration block
// (spec §6, "<provider>_*" keys), shared by the primary and secondary
// enrichment clients.
type ProviderConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	BaseURL            string  `mapstructure:"base_url"`
	Token              string  `mapstructure:"token"`
	Key                string  `mapstructure:"key"`
	Secret             string  `mapstructure:"secret"`
	RateLimitPerMinute int     `mapstructure:"rate_limit_per_minute"`
	CacheDir           string  `mapstructure:"cache_dir"`
	CacheExpiryHours   int     `mapstructure:"cache_expiry_hours"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// Config is the fully decoded configuration record, built from
// viper.Unmarshal rather than ad-hoc GetString/GetInt/GetBool calls.
type Config struct {
	// Roots
	SourceDir      string `mapstructure:"source_dir"`
	DestinationDir string `mapstructure:"destination_dir"`
	UnsortedDir    string `mapstructure:"unsorted_dir"`
	DuplicatesDir  string `mapstructure:"duplicates_dir"`

	// Safety
	DryRun            bool `mapstructure:"dry_run"`
	Incremental       bool `mapstructure:"incremental"`
	ForceCleanupLocks bool `mapstructure:"force_cleanup_locks"`

	// Databases
	StateDbPath      string `mapstructure:"state_db_path"`
	MetadataDbPath   string `mapstructure:"metadata_db_path"`
	DuplicatesDbPath string `mapstructure:"duplicates_db_path"`

	// Organization
	Mode                        OrgMode `mapstructure:"mode"`
	EnableElectronicOrganization bool    `mapstructure:"enable_electronic_organization"`
	MinLabelReleases            int     `mapstructure:"min_label_releases"`
	LabelPriorityThreshold      float64 `mapstructure:"label_priority_threshold"`
	SeparateRemixes             bool    `mapstructure:"separate_remixes"`
	SeparateCompilations        bool    `mapstructure:"separate_compilations"`
	VAPatterns                  string  `mapstructure:"va_patterns"`
	UndergroundPatterns         string  `mapstructure:"underground_patterns"`
	RemixKeywords               string  `mapstructure:"remix_keywords"`
	ArtistAliasGroups           string  `mapstructure:"artist_alias_groups"`
	GroupArtistAliases          bool    `mapstructure:"group_artist_aliases"`

	// Enrichment
	Primary   ProviderConfig `mapstructure:"primary"`
	Secondary ProviderConfig `mapstructure:"secondary"`

	// Performance
	WorkerCount             int `mapstructure:"worker_count"`
	LargeCollectionThreshold int `mapstructure:"large_collection_threshold"`
	MemoryLimitMB            int `mapstructure:"memory_limit_mb"`
	BatchSizeOverride        int `mapstructure:"batch_size_override"`

	// Duplicates
	DuplicateThreshold      float64 `mapstructure:"duplicate_threshold"`
	DurationToleranceSeconds int    `mapstructure:"duration_tolerance_seconds"`
	FuzzyMatchThreshold     float64 `mapstructure:"fuzzy_match_threshold"`

	// Rename policy
	RenameAudioFilesOnMove bool `mapstructure:"rename_audio_files_on_move"`

	// Ambient
	LogFile         string `mapstructure:"log_file"`
	Verbosity       int    `mapstructure:"verbosity"`
	MachineReadable bool   `mapstructure:"machine_readable"`
	NoColor         bool   `mapstructure:"no_color"`
}

// Defaults populates viper with every default named in spec §6 before any
// flag/env/file layer is applied.
func Defaults(v *viper.Viper) {
	v.SetDefault("dry_run", true)
	v.SetDefault("incremental", true)
	v.SetDefault("force_cleanup_locks", false)

	v.SetDefault("state_db_path", "state.db")
	v.SetDefault("metadata_db_path", "metadata.db")
	v.SetDefault("duplicates_db_path", "duplicates.db")

	v.SetDefault("mode", string(ModeHybrid))
	v.SetDefault("enable_electronic_organization", true)
	v.SetDefault("min_label_releases", 3)
	v.SetDefault("label_priority_threshold", 0.8)
	v.SetDefault("separate_remixes", true)
	v.SetDefault("separate_compilations", true)
	v.SetDefault("va_patterns", "Various Artists|Various|VA|V.A.|Compilation")
	v.SetDefault("underground_patterns", "white|promo|bootleg|unreleased|dubplate|test press")
	v.SetDefault("remix_keywords", "remix|rmx|mix|edit|rework|bootleg")
	v.SetDefault("group_artist_aliases", true)

	v.SetDefault("primary.base_url", "https://musicbrainz.org/ws/2")
	v.SetDefault("primary.rate_limit_per_minute", 60)
	v.SetDefault("primary.cache_expiry_hours", 24*30)
	v.SetDefault("primary.confidence_threshold", 0.65)
	v.SetDefault("secondary.base_url", "https://api.discogs.com")
	v.SetDefault("secondary.rate_limit_per_minute", 60)
	v.SetDefault("secondary.cache_expiry_hours", 24*30)
	v.SetDefault("secondary.confidence_threshold", 0.65)

	v.SetDefault("worker_count", 4)
	v.SetDefault("large_collection_threshold", 1000)
	v.SetDefault("memory_limit_mb", 0)
	v.SetDefault("batch_size_override", 0)

	v.SetDefault("duplicate_threshold", 0.85)
	v.SetDefault("duration_tolerance_seconds", 2)
	v.SetDefault("fuzzy_match_threshold", 0.8)

	v.SetDefault("rename_audio_files_on_move", false)

	v.SetDefault("verbosity", 2) // INFO
	v.SetDefault("machine_readable", false)
}

// Load builds a *viper.Viper bound to CRATE_-prefixed environment variables
// and an optional config file, decodes it into a Config, and watches the
// file for live reload of the handful of settings safe to change mid-run
// (currently force_cleanup_locks).
func Load(configFile string) (*Config, *viper.Viper, error) {
	v := viper.New()
	Defaults(v)

	v.SetEnvPrefix("CRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				return nil, nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("decode config: %w", err)
	}

	if configFile != "" {
		v.OnConfigChange(func(fsnotify.Event) {
			if v.ReadInConfig() == nil {
				cfg.ForceCleanupLocks = v.GetBool("force_cleanup_locks")
			}
		})
		v.WatchConfig()
	}

	return &cfg, v, nil
}

// Validate enforces the invariants that make ConfigInvalid fatal at
// startup per spec §4.1 / §7.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source_dir is required")
	}
	if c.DestinationDir == "" {
		return fmt.Errorf("destination_dir is required")
	}
	info, err := os.Stat(c.SourceDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("source_dir %q is not an accessible directory", c.SourceDir)
	}
	switch c.Mode {
	case ModeArtist, ModeLabel, ModeSeries, ModeHybrid:
	default:
		return fmt.Errorf("mode %q is not one of artist|label|series|hybrid", c.Mode)
	}
	return nil
}
