package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DetectedProvider is a model provider with its credential status.
type DetectedProvider struct {
	ID     string // catwalk ID: "google", "openai", etc.
	Name   string
	EnvVar string
	HasKey bool
}

var knownProviders = []DetectedProvider{
	{ID: "google", Name: "Google (Gemini)", EnvVar: "GEMINI_API_KEY"},
	{ID: "openai", Name: "OpenAI", EnvVar: "OPENAI_API_KEY"},
	{ID: "anthropic", Name: "Anthropic (Claude)", EnvVar: "ANTHROPIC_API_KEY"},
	{ID: "openrouter", Name: "OpenRouter", EnvVar: "OPENROUTER_API_KEY"},
}

// DetectProviders reports which known providers have a key in the
// environment or in creds.
func DetectProviders(creds *Credentials) []DetectedProvider {
	result := make([]DetectedProvider, len(knownProviders))
	for i, p := range knownProviders {
		p.HasKey = os.Getenv(p.EnvVar) != "" || (creds != nil && creds.Lookup(p.ID) != "")
		result[i] = p
	}
	return result
}

// ProviderCredential stores a single provider's API key.
type ProviderCredential struct {
	APIKey  string    `json:"api_key"`
	AddedAt time.Time `json:"added_at"`
}

// Credentials holds API keys stored on disk.
type Credentials struct {
	Version     int                           `json:"version"`
	Credentials map[string]ProviderCredential `json:"credentials"`
}

// LoadCredentials reads stored credentials. A missing file yields an
// empty set.
func LoadCredentials(path string) (*Credentials, error) {
	creds := &Credentials{Version: 1, Credentials: map[string]ProviderCredential{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, creds); err != nil {
		return nil, err
	}
	if creds.Credentials == nil {
		creds.Credentials = map[string]ProviderCredential{}
	}
	return creds, nil
}

// Save writes credentials readable only by the owner.
func (c *Credentials) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Set stores a key for provider.
func (c *Credentials) Set(provider, apiKey string) {
	c.Credentials[provider] = ProviderCredential{APIKey: apiKey, AddedAt: time.Now()}
}

// Lookup returns the stored key for provider, or "".
func (c *Credentials) Lookup(provider string) string {
	return c.Credentials[provider].APIKey
}

// Providers returns the IDs with stored keys, sorted.
func (c *Credentials) Providers() []string {
	ids := make([]string, 0, len(c.Credentials))
	for id := range c.Credentials {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Inject exports stored keys to their provider environment variables.
// Variables that are already set are left alone.
func (c *Credentials) Inject() {
	for _, p := range knownProviders {
		key := c.Lookup(p.ID)
		if key == "" || os.Getenv(p.EnvVar) != "" {
			continue
		}
		os.Setenv(p.EnvVar, key)
	}
}
