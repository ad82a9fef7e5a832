package cmd

import (
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/diffanchor/diffanchor/internal/config"
	"github.com/diffanchor/diffanchor/internal/github"
)

// resolveToken picks the platform token: the flag wins, then GITHUB_TOKEN,
// then GHES_TOKEN for enterprise deployments.
func resolveToken(c *cli.Context) string {
	if t := c.String("token"); t != "" {
		return t
	}
	if t := os.Getenv("GITHUB_TOKEN"); t != "" {
		return t
	}
	return os.Getenv("GHES_TOKEN")
}

// resolveAPIURL picks the API base URL: flag, then config file, then a
// GHES_URL host (which gets the /api/v3 path appended), then github.com.
func resolveAPIURL(c *cli.Context, cfg *config.Config) string {
	if u := c.String("api-url"); u != "" {
		return u
	}
	if cfg != nil && cfg.Platform.APIURL != "" {
		return cfg.Platform.APIURL
	}
	if host := os.Getenv("GHES_URL"); host != "" {
		return strings.TrimRight(host, "/") + "/api/v3"
	}
	return github.DefaultAPIURL
}
