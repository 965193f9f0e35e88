// Package settings loads environment-backed credentials and call headers.
package settings

import (
	"os"

	"github.com/joho/godotenv"
)

// Settings carries API credentials and optional attribution headers
// sent with every provider request.
type Settings struct {
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	HTTPBearerToken  string
	SiteURL          string
	SiteName         string
}

// Load reads settings from the environment, sourcing a .env file first
// if one is present. Missing keys are left empty; adapters that need a
// key validate at construction time.
func Load() Settings {
	_ = godotenv.Load()
	return Settings{
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		HTTPBearerToken:  os.Getenv("HTTP_BEARER_TOKEN"),
		SiteURL:          os.Getenv("DEBATEBENCH_SITE_URL"),
		SiteName:         os.Getenv("DEBATEBENCH_SITE_NAME"),
	}
}
