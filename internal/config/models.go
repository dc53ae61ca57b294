package config

import (
	"os"
	"strings"

	"github.com/charmbracelet/catwalk/pkg/embedded"
)

type ModelChoice struct {
	ID   string
	Name string
	Ref  string // backend-qualified ref usable as chat_model
}

// ChatModels lists the chat models of the configured provider, falling
// back to catwalk's embedded catalog. It returns nil when no API key is
// available for the provider.
func ChatModels(cfg Config) []ModelChoice {
	provider := cfg.Provider
	models := provider.Models

	if len(models) == 0 {
		for _, p := range embedded.GetAll() {
			if p.ID == provider.ID {
				models = p.Models
				break
			}
		}
	}

	if provider.APIKey == "" {
		envKey := strings.ToUpper(string(provider.ID)) + "_API_KEY"
		if os.Getenv(envKey) == "" {
			return nil
		}
	}

	choices := make([]ModelChoice, 0, len(models))
	for _, m := range models {
		choices = append(choices, ModelChoice{
			ID:   m.ID,
			Name: m.Name,
			Ref:  string(provider.ID) + "/" + m.ID,
		})
	}
	return choices
}
