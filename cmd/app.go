package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/ai/gemini"
	"github.com/spigell/resume-butler/internal/compose"
	"github.com/spigell/resume-butler/internal/dispatch"
	"github.com/spigell/resume-butler/internal/document"
	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/intent"
	"github.com/spigell/resume-butler/internal/jd"
	"github.com/spigell/resume-butler/internal/logger"
	"github.com/spigell/resume-butler/internal/match"
	"github.com/spigell/resume-butler/internal/persona"
	"github.com/spigell/resume-butler/internal/prompts"
	"github.com/spigell/resume-butler/internal/router"
	"github.com/spigell/resume-butler/internal/secrets"
	"github.com/spigell/resume-butler/internal/session"
	"github.com/spigell/resume-butler/internal/storage"

	"go.uber.org/zap"
)

// application is everything a command needs to hold a conversation.
type application struct {
	config    *Config
	sessions  *session.Manager
	assistant *session.Assistant
	parser    *document.Registry
	matcher   *match.Matcher
	jobs      *jd.Fetcher
	// store is nil when transcripts are disabled.
	store  *storage.Store
	logger *zap.Logger
}

func (a *application) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing transcript store", zap.Error(err))
	}
}

// newApplication wires the assistant from the configuration. withStore
// controls whether transcripts are recorded.
func newApplication(ctx context.Context, log *zap.Logger, withStore bool) (*application, error) {
	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	generator, err := newGenerator(ctx, config.AI, log)
	if err != nil {
		return nil, err
	}

	library, err := prompts.Load(config.Prompts.Dir, logger.WithComponent(log, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	renderer := export.NewRenderer()
	matcher := match.NewMatcher(generator, library, config.AI.MinimumFitScore, config.AI.Gemini.MaxLogLength,
		logger.WithComponent(log, "matcher"))

	personaCfg := persona.Config{Timeout: config.Router.GenerateTimeout}
	personas := []dispatch.Persona{
		persona.NewAnalyst(generator, library, matcher, personaCfg, logger.WithComponent(log, "analyst")),
		persona.NewWriter(generator, library, renderer, personaCfg, logger.WithComponent(log, "writer")),
	}

	classifier := intent.NewClassifier(generator, library, intent.Config{
		Timeout:       config.Router.ClassifyTimeout,
		HistoryWindow: config.Router.HistoryWindow,
		Personas:      dispatch.Describe(personas),
	}, logger.WithComponent(log, "classifier"))

	orchestrator := dispatch.NewOrchestrator(classifier, personas, config.Router.MaxRounds,
		logger.WithComponent(log, "dispatch"))

	rt := router.New(classifier, orchestrator, generator, library, renderer, router.Config{
		GenerateTimeout: config.Router.GenerateTimeout,
	}, logger.WithComponent(log, "router"))

	parser := document.NewRegistry(logger.WithComponent(log, "document"))
	assistant := session.NewAssistant(rt, compose.New(logger.WithComponent(log, "compose")),
		parser, matcher, renderer, log)

	a := &application{
		config:    config,
		assistant: assistant,
		parser:    parser,
		matcher:   matcher,
		jobs:      jd.NewFetcher(logger.WithComponent(log, "jd")),
		logger:    log,
	}

	// A nil *storage.Store must not end up inside the Recorder interface.
	var recorder session.Recorder
	if dir := strings.TrimSpace(config.Storage.DataDir); withStore && dir != "" {
		store, err := storage.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("opening transcript store: %w", err)
		}
		log.Info("recording transcripts", zap.String("data_dir", dir))
		a.store = store
		recorder = store
	}

	a.sessions = session.NewManager(config.Router.HistoryLimit, recorder, log)

	return a, nil
}

func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	log.Info("initializing ai generator",
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, cfg.Gemini.MaxLogLength,
		logger.WithComponent(log, "generator"))
	if err != nil {
		return nil, fmt.Errorf("creating gemini generator: %w", err)
	}

	return generator, nil
}

func redacted(config *Config) *Config {
	c := *config
	if config.AI != nil && config.AI.Gemini != nil && config.AI.Gemini.APIKey != "" {
		aiCfg := *config.AI
		g := *config.AI.Gemini
		g.APIKey = "***"
		aiCfg.Gemini = &g
		c.AI = &aiCfg
	}
	return &c
}
