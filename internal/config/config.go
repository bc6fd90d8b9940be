// Package config loads runtime settings from a config file and the
// environment. File values are optional; every setting has a default and
// can be overridden with an EACLI_* environment variable.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds everything the pipeline needs to find its inputs and
// outputs.
type Settings struct {
	// ExportDir receives the weekly snapshot exports.
	ExportDir string `mapstructure:"export_dir"`
	// SheetsDir holds the per-category worksheets.
	SheetsDir string `mapstructure:"sheets_dir"`
	// AllItemsPath is the aggregate worksheet across every category.
	AllItemsPath string `mapstructure:"all_items_path"`
	// ImportDir receives collected worksheet exports.
	ImportDir string `mapstructure:"import_dir"`
	// DBPath locates the SQLite store.
	DBPath string `mapstructure:"db_path"`
	// MappingPath locates the department-to-category lookup table.
	MappingPath string `mapstructure:"mapping_path"`
	// LogFile enables a rotated file sink when non-empty.
	LogFile string `mapstructure:"log_file"`

	// DashboardPort is where the monitor listens.
	DashboardPort int `mapstructure:"dashboard_port"`
	// WatchDebounce is how long the export watcher waits after the last
	// write before triggering a run.
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`

	// AnthropicAPIKey enables classification suggestions.
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	// ClassifyModel overrides the suggestion model.
	ClassifyModel string `mapstructure:"classify_model"`
}

// Load reads settings from the given config file, or from eacli.yaml in
// the working directory when path is empty. A missing default config file
// is fine; a missing explicit one is an error.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("export_dir", filepath.Join("data", "export"))
	v.SetDefault("sheets_dir", filepath.Join("data", "sheets"))
	v.SetDefault("all_items_path", filepath.Join("data", "sheets", "all_items.csv"))
	v.SetDefault("import_dir", filepath.Join("data", "import"))
	v.SetDefault("db_path", filepath.Join("data", "easy_access.db"))
	v.SetDefault("mapping_path", filepath.Join("data", "categories.yaml"))
	v.SetDefault("log_file", "")
	v.SetDefault("dashboard_port", 8080)
	v.SetDefault("watch_debounce", 2*time.Second)
	v.SetDefault("classify_model", "")

	v.SetEnvPrefix("EACLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("eacli")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &settings, nil
}
