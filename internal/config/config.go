package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Platform struct {
		APIURL string `koanf:"api_url"`
	} `koanf:"platform"`

	Review struct {
		MaxComments int      `koanf:"max_comments"`
		ChunkLines  int      `koanf:"chunk_lines"`
		Stages      []string `koanf:"stages"`
		Checklist   string   `koanf:"checklist"`
		LogDir      string   `koanf:"log_dir"`
	} `koanf:"review"`

	HTTP struct {
		MaxRetries     int `koanf:"max_retries"`
		BackoffSeconds int `koanf:"backoff_seconds"`
	} `koanf:"http"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"review.max_comments":  50,
		"review.chunk_lines":   20,
		"review.stages":        []string{"pattern", "format", "static-analysis", "semantic"},
		"http.max_retries":     3,
		"http.backoff_seconds": 1,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try default locations
		defaultPaths := []string{"./diffanchor.toml", "$HOME/.diffanchor.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix DIFFANCHOR_. Double
	// underscores separate sections so single ones survive in key names,
	// e.g. DIFFANCHOR_REVIEW__MAX_COMMENTS -> review.max_comments.
	k.Load(env.Provider("DIFFANCHOR_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DIFFANCHOR_")), "__", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# diffanchor configuration

[platform]
# Leave empty for github.com; enterprise deployments use "https://github.example.com/api/v3"
api_url = ""

[review]
max_comments = 50
chunk_lines = 20
stages = ["pattern", "format", "static-analysis", "semantic"]
# checklist = "configs/checklist.yml"
# log_dir = "diffanchor_logs"

[http]
max_retries = 3
backoff_seconds = 1
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Review.MaxComments < 0 {
		return fmt.Errorf("review.max_comments must not be negative")
	}
	if config.Review.ChunkLines < 0 {
		return fmt.Errorf("review.chunk_lines must not be negative")
	}
	if config.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative")
	}
	if len(config.Review.Stages) == 0 {
		return fmt.Errorf("review.stages must name at least one stage")
	}
	return nil
}
