package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// ReviewerConfigDir is the directory under the XDG config home holding reviewer settings.
	ReviewerConfigDir = "txreview"
	// ReviewerConfigFile is the reviewer settings file name.
	ReviewerConfigFile = "config.yaml"

	defaultReviewerURL     = "ws://127.0.0.1:8000/ws"
	defaultSuggestionLimit = 8
)

// Reviewer holds the settings of the interactive review client.
type Reviewer struct {
	ServerURL       string `yaml:"server_url"`
	SuggestionLimit int    `yaml:"suggestion_limit"`
	LogFile         string `yaml:"log_file"`
}

// DefaultReviewer returns the settings used when no file is found.
func DefaultReviewer() Reviewer {
	return Reviewer{
		ServerURL:       defaultReviewerURL,
		SuggestionLimit: defaultSuggestionLimit,
	}
}

// ReviewerPath is where reviewer settings live when no explicit file is given.
func ReviewerPath() string {
	return filepath.Join(xdg.ConfigHome, ReviewerConfigDir, ReviewerConfigFile)
}

// LoadReviewer reads reviewer settings from file, or from ReviewerPath when file is
// empty. A missing file yields the defaults. Fields absent from the file keep their
// default values. The second return value is the path that was consulted.
func LoadReviewer(file string) (Reviewer, string, error) {
	conf := DefaultReviewer()
	if file == "" {
		file = ReviewerPath()
	}

	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return conf, file, nil
	}
	if err != nil {
		return conf, file, fmt.Errorf("failed to read reviewer config %s: %w", file, err)
	}

	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, file, fmt.Errorf("failed to parse reviewer config %s: %w", file, err)
	}

	if err := conf.Validate(); err != nil {
		return conf, file, fmt.Errorf("invalid reviewer config %s: %w", file, err)
	}

	return conf, file, nil
}

// Validate checks the reviewer settings.
func (r Reviewer) Validate() error {
	u, err := url.Parse(r.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server_url must use ws or wss, got %q", r.ServerURL)
	}
	if r.SuggestionLimit < 1 {
		return fmt.Errorf("suggestion_limit must be positive")
	}
	return nil
}

// SaveReviewer writes settings to file, creating parent directories as needed.
func SaveReviewer(file string, conf Reviewer) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("failed to make all directories for %s: %w", file, err)
	}
	data, err := yaml.Marshal(conf)
	if err != nil {
		return fmt.Errorf("failed to marshal reviewer config: %w", err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("failed to write reviewer config %s: %w", file, err)
	}
	return nil
}
