package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultDir is where config files are looked up when no directory is given
const DefaultDir = "config"

// GatewayConfig points the client at a remote profile store
type GatewayConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url" env:"RPSYNC_GATEWAY_URL"`
	Token   string        `yaml:"token" toml:"token" env:"RPSYNC_GATEWAY_TOKEN"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" env:"RPSYNC_GATEWAY_TIMEOUT"`
}

// SyncConfig tunes the upload pipeline
type SyncConfig struct {
	MaxAttempts int           `yaml:"max_attempts" toml:"max_attempts" env:"RPSYNC_SYNC_MAX_ATTEMPTS"`
	BaseDelay   time.Duration `yaml:"base_delay" toml:"base_delay" env:"RPSYNC_SYNC_BASE_DELAY"`
	Concurrency int           `yaml:"concurrency" toml:"concurrency" env:"RPSYNC_SYNC_CONCURRENCY"`
}

// DatabaseConfig is used by the serve and migrate commands
type DatabaseConfig struct {
	URL         string `yaml:"url" toml:"url" env:"RPSYNC_DATABASE_URL"`
	MaxVersions int    `yaml:"max_versions" toml:"max_versions" env:"RPSYNC_DATABASE_MAX_VERSIONS"`
}

// SyncMetaConfig locates the local sync metadata database
type SyncMetaConfig struct {
	Path string `yaml:"path" toml:"path" env:"RPSYNC_SYNCMETA_PATH"`
}

// LoggerConfig contains logging configuration
type LoggerConfig struct {
	Level      string `yaml:"level" toml:"level" env:"RPSYNC_LOG_LEVEL"`
	Format     string `yaml:"format" toml:"format" env:"RPSYNC_LOG_FORMAT"`
	SaveToDB   bool   `yaml:"save_to_db" toml:"save_to_db" env:"RPSYNC_LOG_SAVE_DB"`
	File       string `yaml:"file" toml:"file" env:"RPSYNC_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" env:"RPSYNC_LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" env:"RPSYNC_LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" env:"RPSYNC_LOG_MAX_AGE_DAYS"`
}

// WatchConfig drives the watch command
type WatchConfig struct {
	Schedule string        `yaml:"schedule" toml:"schedule" env:"RPSYNC_WATCH_SCHEDULE"`
	Debounce time.Duration `yaml:"debounce" toml:"debounce" env:"RPSYNC_WATCH_DEBOUNCE"`
}

// ServerConfig drives the serve command
type ServerConfig struct {
	Addr   string `yaml:"addr" toml:"addr" env:"RPSYNC_SERVER_ADDR"`
	Token  string `yaml:"token" toml:"token" env:"RPSYNC_SERVER_TOKEN"`
	UserID string `yaml:"user_id" toml:"user_id" env:"RPSYNC_SERVER_USER_ID"`
}

// AddonConfig locates the addon's SavedVariables file
type AddonConfig struct {
	GamePath       string `yaml:"game_path" toml:"game_path" env:"RPSYNC_GAME_PATH"`
	Flavor         string `yaml:"flavor" toml:"flavor" env:"RPSYNC_GAME_FLAVOR"`
	AccountID      string `yaml:"account_id" toml:"account_id" env:"RPSYNC_ACCOUNT_ID"`
	SavedVariables string `yaml:"saved_variables" toml:"saved_variables" env:"RPSYNC_SAVED_VARIABLES"`
}

// Config represents the complete configuration structure for YAML/TOML files
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway" toml:"gateway"`
	Sync     SyncConfig     `yaml:"sync" toml:"sync"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	SyncMeta SyncMetaConfig `yaml:"syncmeta" toml:"syncmeta"`
	Logger   LoggerConfig   `yaml:"logger" toml:"logger"`
	Watch    WatchConfig    `yaml:"watch" toml:"watch"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Addon    AddonConfig    `yaml:"addon" toml:"addon"`
}

// ConfigManager holds the loaded configuration
type ConfigManager struct {
	config *Config
	source string
}

var errNoConfigFile = errors.New("config file not found")

// NewConfigManager loads configuration from dir (DefaultDir when empty).
// Defaults are applied first, then config/rpsync.yaml or, failing that,
// config/rpsync.toml, then RPSYNC_* environment variables (.env included)
func NewConfigManager(dir string) (*ConfigManager, error) {
	if dir == "" {
		dir = DefaultDir
	}

	manager := &ConfigManager{config: &Config{}, source: "defaults"}
	manager.setDefaults(manager.config)

	if err := manager.loadYAMLConfig(dir, manager.config); err != nil {
		if !errors.Is(err, errNoConfigFile) {
			return nil, err
		}
		if err := manager.loadTOMLConfig(dir, manager.config); err != nil && !errors.Is(err, errNoConfigFile) {
			return nil, err
		}
	}

	if err := manager.loadEnvConfig(manager.config); err != nil {
		return nil, err
	}

	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return manager, nil
}

// loadYAMLConfig attempts to load configuration from YAML file
func (cm *ConfigManager) loadYAMLConfig(dir string, config *Config) error {
	yamlPath := filepath.Join(dir, "rpsync.yaml")
	data, err := os.ReadFile(yamlPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", errNoConfigFile, yamlPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read YAML config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cm.source = yamlPath
	return nil
}

// loadTOMLConfig attempts to load configuration from TOML file
func (cm *ConfigManager) loadTOMLConfig(dir string, config *Config) error {
	tomlPath := filepath.Join(dir, "rpsync.toml")
	if _, err := os.Stat(tomlPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", errNoConfigFile, tomlPath)
	}

	if _, err := toml.DecodeFile(tomlPath, config); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cm.source = tomlPath
	return nil
}

// loadEnvConfig overlays environment variables on the loaded values
func (cm *ConfigManager) loadEnvConfig(config *Config) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	g := &config.Gateway
	g.BaseURL = getEnvString("RPSYNC_GATEWAY_URL", g.BaseURL)
	g.Token = getEnvString("RPSYNC_GATEWAY_TOKEN", g.Token)
	g.Timeout = getEnvDuration("RPSYNC_GATEWAY_TIMEOUT", g.Timeout)

	s := &config.Sync
	s.MaxAttempts = getEnvInt("RPSYNC_SYNC_MAX_ATTEMPTS", s.MaxAttempts)
	s.BaseDelay = getEnvDuration("RPSYNC_SYNC_BASE_DELAY", s.BaseDelay)
	s.Concurrency = getEnvInt("RPSYNC_SYNC_CONCURRENCY", s.Concurrency)

	d := &config.Database
	d.URL = getEnvString("DATABASE_URL", d.URL)
	d.URL = getEnvString("RPSYNC_DATABASE_URL", d.URL)
	d.MaxVersions = getEnvInt("RPSYNC_DATABASE_MAX_VERSIONS", d.MaxVersions)

	config.SyncMeta.Path = getEnvString("RPSYNC_SYNCMETA_PATH", config.SyncMeta.Path)

	l := &config.Logger
	l.Level = getEnvString("RPSYNC_LOG_LEVEL", l.Level)
	l.Format = getEnvString("RPSYNC_LOG_FORMAT", l.Format)
	l.SaveToDB = getEnvBool("RPSYNC_LOG_SAVE_DB", l.SaveToDB)
	l.File = getEnvString("RPSYNC_LOG_FILE", l.File)
	l.MaxSizeMB = getEnvInt("RPSYNC_LOG_MAX_SIZE_MB", l.MaxSizeMB)
	l.MaxBackups = getEnvInt("RPSYNC_LOG_MAX_BACKUPS", l.MaxBackups)
	l.MaxAgeDays = getEnvInt("RPSYNC_LOG_MAX_AGE_DAYS", l.MaxAgeDays)

	w := &config.Watch
	w.Schedule = getEnvString("RPSYNC_WATCH_SCHEDULE", w.Schedule)
	w.Debounce = getEnvDuration("RPSYNC_WATCH_DEBOUNCE", w.Debounce)

	sv := &config.Server
	sv.Addr = getEnvString("RPSYNC_SERVER_ADDR", sv.Addr)
	sv.Token = getEnvString("RPSYNC_SERVER_TOKEN", sv.Token)
	sv.UserID = getEnvString("RPSYNC_SERVER_USER_ID", sv.UserID)

	a := &config.Addon
	a.GamePath = getEnvString("RPSYNC_GAME_PATH", a.GamePath)
	a.Flavor = getEnvString("RPSYNC_GAME_FLAVOR", a.Flavor)
	a.AccountID = getEnvString("RPSYNC_ACCOUNT_ID", a.AccountID)
	a.SavedVariables = getEnvString("RPSYNC_SAVED_VARIABLES", a.SavedVariables)

	return nil
}

// setDefaults sets default configuration values
func (cm *ConfigManager) setDefaults(config *Config) {
	config.Gateway = GatewayConfig{
		BaseURL: "http://localhost:8080/api",
		Timeout: 30 * time.Second,
	}

	config.Sync = SyncConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Concurrency: 3,
	}

	config.Database = DatabaseConfig{
		MaxVersions: 10,
	}

	config.SyncMeta = SyncMetaConfig{
		Path: filepath.Join("data", "rpsync.db"),
	}

	config.Logger = LoggerConfig{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}

	config.Watch = WatchConfig{
		Schedule: "@every 5m",
		Debounce: 2 * time.Second,
	}

	config.Server = ServerConfig{
		Addr:   ":8080",
		UserID: "local",
	}

	config.Addon = AddonConfig{
		Flavor: "_retail_",
	}
}

// Config returns the complete configuration
func (cm *ConfigManager) Config() *Config {
	return cm.config
}

// Source names the file the configuration was read from, or "defaults"
func (cm *ConfigManager) Source() string {
	return cm.source
}

// GetGatewayConfig returns the gateway configuration
func (cm *ConfigManager) GetGatewayConfig() *GatewayConfig {
	return &cm.config.Gateway
}

// GetSyncConfig returns the sync configuration
func (cm *ConfigManager) GetSyncConfig() *SyncConfig {
	return &cm.config.Sync
}

// GetDatabaseConfig returns the database configuration
func (cm *ConfigManager) GetDatabaseConfig() *DatabaseConfig {
	return &cm.config.Database
}

// GetSyncMetaConfig returns the sync metadata configuration
func (cm *ConfigManager) GetSyncMetaConfig() *SyncMetaConfig {
	return &cm.config.SyncMeta
}

// GetLoggerConfig returns the logger configuration
func (cm *ConfigManager) GetLoggerConfig() *LoggerConfig {
	return &cm.config.Logger
}

// GetWatchConfig returns the watch configuration
func (cm *ConfigManager) GetWatchConfig() *WatchConfig {
	return &cm.config.Watch
}

// GetServerConfig returns the server configuration
func (cm *ConfigManager) GetServerConfig() *ServerConfig {
	return &cm.config.Server
}

// GetAddonConfig returns the addon configuration
func (cm *ConfigManager) GetAddonConfig() *AddonConfig {
	return &cm.config.Addon
}

const (
	savedVariablesDir  = "SavedVariables"
	savedVariablesFile = "totalRP3.lua"
)

// AccountFile is the addon data file of one game account
type AccountFile struct {
	AccountID string
	Path      string
}

// SavedVariablesFiles resolves the addon data files to scan. An explicit
// saved_variables setting wins over the game_path layout. With game_path set
// and account_id unset, every account under WTF/Account holding the addon
// file is returned, ordered by account id
func (a *AddonConfig) SavedVariablesFiles() ([]AccountFile, error) {
	if a.SavedVariables != "" {
		account := a.AccountID
		if account == "" {
			// WTF/Account/<id>/SavedVariables/totalRP3.lua
			account = filepath.Base(filepath.Dir(filepath.Dir(a.SavedVariables)))
		}
		return []AccountFile{{AccountID: account, Path: a.SavedVariables}}, nil
	}
	if a.GamePath == "" {
		return nil, errors.New("addon game_path is required when saved_variables is not set")
	}

	root := filepath.Join(a.GamePath, a.Flavor, "WTF", "Account")
	if a.AccountID != "" {
		return []AccountFile{{
			AccountID: a.AccountID,
			Path:      filepath.Join(root, a.AccountID, savedVariablesDir, savedVariablesFile),
		}}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list game accounts: %w", err)
	}
	var files []AccountFile
	for _, entry := range entries {
		// the account-wide SavedVariables dir sits next to the account dirs
		if !entry.IsDir() || entry.Name() == savedVariablesDir {
			continue
		}
		path := filepath.Join(root, entry.Name(), savedVariablesDir, savedVariablesFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		files = append(files, AccountFile{AccountID: entry.Name(), Path: path})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no account under %s has a %s file", root, savedVariablesFile)
	}
	return files, nil
}

// Validate validates the configuration values
func (cm *ConfigManager) Validate() error {
	c := cm.config

	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway base_url cannot be empty")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive, got %v", c.Gateway.Timeout)
	}

	if c.Sync.MaxAttempts <= 0 {
		return fmt.Errorf("sync max_attempts must be positive, got %d", c.Sync.MaxAttempts)
	}
	if c.Sync.BaseDelay < 0 {
		return fmt.Errorf("sync base_delay must be non-negative, got %v", c.Sync.BaseDelay)
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync concurrency must be positive, got %d", c.Sync.Concurrency)
	}

	if c.Database.MaxVersions <= 0 {
		return fmt.Errorf("database max_versions must be positive, got %d", c.Database.MaxVersions)
	}

	if c.SyncMeta.Path == "" {
		return fmt.Errorf("syncmeta path cannot be empty")
	}

	if !isValidLogLevel(c.Logger.Level) {
		return fmt.Errorf("invalid logger level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if !isValidLogFormat(c.Logger.Format) {
		return fmt.Errorf("invalid logger format: %s (must be json or console)", c.Logger.Format)
	}

	if c.Watch.Schedule == "" {
		return fmt.Errorf("watch schedule cannot be empty")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch debounce must be non-negative, got %v", c.Watch.Debounce)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server addr cannot be empty")
	}
	if c.Server.UserID == "" {
		return fmt.Errorf("server user_id cannot be empty")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validation helper functions
func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func isValidLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "json", "console":
		return true
	}
	return false
}
