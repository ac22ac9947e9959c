// Package config loads the studio configuration from a JSON file, a .env file
// and the process environment, in increasing order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the root configuration document.
type Config struct {
	LLM        LLMConfig     `json:"llm"`
	ServerAddr string        `json:"server_addr,omitempty"`
	Draft      DraftConfig   `json:"draft"`
	Persona    PersonaConfig `json:"persona"`
	ExportDir  string        `json:"export_dir,omitempty"`
	LogMode    string        `json:"log_mode,omitempty"`
	// Today pins the agenda's "today" filter (YYYY-MM-DD); empty means the real date.
	Today string `json:"today,omitempty"`
}

// LLMConfig selects and configures the generation provider.
type LLMConfig struct {
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	ImageModel     string `json:"image_model,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	BaseURL        string `json:"base_url,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// DraftConfig points at the durable post draft slot. DSN ending in .json selects
// the file backend, "memory" the in-process one, anything else SQLite.
type DraftConfig struct {
	DSN string `json:"dsn,omitempty"`
}

// PersonaConfig is the clinic identity injected into prompts.
type PersonaConfig struct {
	DoctorName string `json:"doctor_name,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
	Brand      string `json:"brand,omitempty"`
	Clinic     string `json:"clinic,omitempty"`
	Address    string `json:"address,omitempty"`
	Site       string `json:"site,omitempty"`
}

const (
	DefaultServerAddr     = ":8080"
	DefaultDraftDSN       = "data/medisocial.db"
	DefaultExportDir      = "exports"
	DefaultTimeoutSeconds = 90
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			ImageModel:     "dall-e-3",
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		ServerAddr: DefaultServerAddr,
		Draft:      DraftConfig{DSN: DefaultDraftDSN},
		ExportDir:  DefaultExportDir,
		LogMode:    "dev",
		Persona: PersonaConfig{
			DoctorName: "Dr. Carlos Franciozi",
			Specialty:  "Cirurgia de Joelho",
			Brand:      "Seu Joelho",
			Clinic:     "Hospital Israelita Albert Einstein",
			Address:    "Av. Albert Einstein, 627 - Pavilhão Vicky e Joseph Safra - Bloco A1 - Sala 113 - Morumbi, São Paulo - SP",
			Site:       "seujoelho.com",
		},
	}
}

// Load reads path (optional), then .env, then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// A missing .env is the normal case outside development.
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.ImageModel, "LLM_IMAGE_MODEL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setString(&cfg.ServerAddr, "SERVER_ADDR")
	setString(&cfg.Draft.DSN, "DRAFT_DSN")
	setString(&cfg.ExportDir, "EXPORT_DIR")
	setString(&cfg.LogMode, "LOG_MODE")
	setString(&cfg.Today, "AGENDA_TODAY")
	if v := strings.TrimSpace(os.Getenv("LLM_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LLM.TimeoutSeconds = n
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks provider-specific requirements.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "mock":
		return nil
	case "openai":
	case "compatible":
		if c.LLM.BaseURL == "" {
			return errors.New("llm provider compatible requires base_url (OpenAI-compatible endpoint)")
		}
	case "":
		return errors.New("llm.provider is required")
	default:
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	return nil
}
