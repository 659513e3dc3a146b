package config

import (
	"errors"
	"fmt"
	"time"

	"leaflet_scraper/internal/parser"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration parameters.
type Config struct {
	BaseURL         string
	DirectoryPath   string
	UserAgent       string
	RandomUserAgent bool
	Timeout         time.Duration
	OutputFile      string
	Workers         int
	Headless        bool
	SkipMalformed   bool
	LogLevel        string
	Schema          parser.Schema
	// DBConn is empty when no database is configured.
	DBConn string
}

// Global constants for configuration keys
const (
	BaseURLKey         = "base_url"
	DirectoryPathKey   = "directory_path"
	UserAgentKey       = "user_agent"
	RandomUserAgentKey = "random_user_agent"
	TimeoutKey         = "timeout"
	OutputFileKey      = "output_file"
	WorkersKey         = "workers"
	HeadlessKey        = "headless"
	SkipMalformedKey   = "skip_malformed_listings"
	LogLevelKey        = "log_level"
	SchemaKey          = "schema"

	DBHostKey     = "DB_HOST"
	DBPortKey     = "DB_PORT"
	DBUserKey     = "DB_USER"
	DBPasswordKey = "DB_PASSWORD"
	DBNameKey     = "DB_NAME"
)

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(BaseURLKey, "https://www.prospektmaschine.de")
	v.SetDefault(DirectoryPathKey, "/hypermarkte/")
	v.SetDefault(UserAgentKey, "Mozilla/5.0 (compatible; LeafletScraper)")
	v.SetDefault(RandomUserAgentKey, false)
	v.SetDefault(TimeoutKey, 15*time.Second)
	v.SetDefault(OutputFileKey, "leaflets.json")
	v.SetDefault(WorkersKey, 1)
	v.SetDefault(HeadlessKey, false)
	v.SetDefault(SkipMalformedKey, false)
	v.SetDefault(LogLevelKey, "info")
	v.SetDefault(DBPortKey, "5432")

	schema := parser.DefaultSchema()
	v.SetDefault(SchemaKey+".retailer_link.selector", schema.RetailerLink.Selector)
	v.SetDefault(SchemaKey+".retailer_link.attr", schema.RetailerLink.Attr)
	v.SetDefault(SchemaKey+".listing.selector", schema.Listing.Selector)
	v.SetDefault(SchemaKey+".thumbnail.selector", schema.Thumbnail.Selector)
	v.SetDefault(SchemaKey+".thumbnail.attr", schema.Thumbnail.Attr)
	v.SetDefault(SchemaKey+".date.selector", schema.Date.Selector)
	v.SetDefault(SchemaKey+".title", schema.Title)
}

// Init reads config.yaml from the working directory (if present) and APP_*
// environment variables on top of the defaults.
func Init(logger logrus.FieldLogger) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	SetDefaults(v)

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		logger.Debug("config.yaml not found, using defaults and environment variables")
	} else {
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.WithField("file", e.Name).Warn("Config file changed; changes apply to the next run")
		})
		v.WatchConfig()
	}

	return Load(v)
}

// Load builds a Config from an already populated viper instance.
func Load(v *viper.Viper) (*Config, error) {
	// Unmarshal merges every key, so a partial schema in config.yaml keeps
	// the defaults of the keys it leaves out.
	var settings struct {
		Schema parser.Schema `mapstructure:"schema"`
	}
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("could not unmarshal schema configuration: %w", err)
	}
	schema := settings.Schema
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	workers := v.GetInt(WorkersKey)
	if workers < 1 {
		return nil, fmt.Errorf("%s must be at least 1, got %d", WorkersKey, workers)
	}
	timeout := v.GetDuration(TimeoutKey)
	if timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", TimeoutKey, timeout)
	}

	return &Config{
		BaseURL:         v.GetString(BaseURLKey),
		DirectoryPath:   v.GetString(DirectoryPathKey),
		UserAgent:       v.GetString(UserAgentKey),
		RandomUserAgent: v.GetBool(RandomUserAgentKey),
		Timeout:         timeout,
		OutputFile:      v.GetString(OutputFileKey),
		Workers:         workers,
		Headless:        v.GetBool(HeadlessKey),
		SkipMalformed:   v.GetBool(SkipMalformedKey),
		LogLevel:        v.GetString(LogLevelKey),
		Schema:          schema,
		DBConn:          buildDSN(v),
	}, nil
}

// buildDSN constructs the PostgreSQL DSN, or returns "" when host, user or
// database name are missing.
func buildDSN(v *viper.Viper) string {
	host := v.GetString(DBHostKey)
	port := v.GetString(DBPortKey)
	user := v.GetString(DBUserKey)
	password := v.GetString(DBPasswordKey)
	dbname := v.GetString(DBNameKey)

	if host == "" || user == "" || dbname == "" {
		return ""
	}

	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Europe/Berlin",
		host, user, password, dbname, port,
	)
}
