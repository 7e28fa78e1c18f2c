package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestGetConfigDefaults(t *testing.T) {
	viper.Set("router.generate-timeout", "2m")
	viper.Set("ai.gemini.model", "gemini-2.5-pro")
	t.Cleanup(func() {
		viper.Set("router.generate-timeout", 90*time.Second)
		viper.Set("ai.gemini.model", "")
	})

	config, err := getConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Router.GenerateTimeout != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", config.Router.GenerateTimeout)
	}
	if config.Router.MaxRounds != 3 {
		t.Fatalf("expected default max rounds, got %d", config.Router.MaxRounds)
	}
	if config.AI.Gemini.Model != "gemini-2.5-pro" {
		t.Fatalf("unexpected model %q", config.AI.Gemini.Model)
	}
	if config.Prompts == nil || config.Storage == nil || config.Server == nil {
		t.Fatal("expected every section to be present")
	}
	if config.Server.Listen != "127.0.0.1:8080" {
		t.Fatalf("unexpected listen address %q", config.Server.Listen)
	}
}

func TestRedacted(t *testing.T) {
	config := &Config{AI: &AIConfig{Gemini: &GeminiConfig{APIKey: "secret", Model: "m"}}}

	shown := redacted(config)

	if shown.AI.Gemini.APIKey != "***" || shown.AI.Gemini.Model != "m" {
		t.Fatalf("unexpected redacted config %+v", shown.AI.Gemini)
	}
	if config.AI.Gemini.APIKey != "secret" {
		t.Fatal("original config must not change")
	}
}
