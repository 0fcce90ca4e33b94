package services

import (
	"fmt"
	"strings"
)

// Deployments cloned from the template still carry this marker in their URLs.
const placeholderMarker = "YOUR_GOOGLE"

// RemoteConfig collects every remote endpoint and credential in one place so
// each client receives it explicitly instead of reading package globals.
type RemoteConfig struct {
	GatekeeperURL    string
	GatekeeperSecret string
	SheetLogURL      string
	GoogleAPIKey     string
}

func NewRemoteConfigFromEnv() RemoteConfig {
	return RemoteConfig{
		GatekeeperURL:    GetEnv("GATEKEEPER_URL", ""),
		GatekeeperSecret: GetEnv("GATEKEEPER_SECRET", ""),
		SheetLogURL:      GetEnv("SHEET_LOG_URL", ""),
		GoogleAPIKey:     GetEnv("GOOGLE_API_KEY", ""),
	}
}

func IsPlaceholderURL(url string) bool {
	return url == "" || strings.Contains(url, placeholderMarker)
}

// Validate fails fast at startup instead of on the first user request.
func (cfg RemoteConfig) Validate() error {
	if IsPlaceholderURL(cfg.GatekeeperURL) {
		return fmt.Errorf("GATEKEEPER_URL: %w", ErrServiceUnavailable)
	}
	if cfg.GoogleAPIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY: %w", ErrServiceUnavailable)
	}
	return nil
}
