// Package app wires configuration into the chat pipeline shared by the server
// and the worker.
package app

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/suPer8Hu/careerbot/internal/ai"
	"github.com/suPer8Hu/careerbot/internal/chat"
	"github.com/suPer8Hu/careerbot/internal/config"
	"github.com/suPer8Hu/careerbot/internal/db"
	"github.com/suPer8Hu/careerbot/internal/intent"
	"github.com/suPer8Hu/careerbot/internal/logx"
	"github.com/suPer8Hu/careerbot/internal/memory"
	"github.com/suPer8Hu/careerbot/internal/models"
	"github.com/suPer8Hu/careerbot/internal/ratelimit"
	"github.com/suPer8Hu/careerbot/internal/store/redisstore"
	"gorm.io/gorm"
)

type App struct {
	Cfg      config.Config
	DB       *gorm.DB // nil when running memory-only
	Repo     *chat.Repo
	Sessions *memory.Manager
	Service  *chat.Service

	ProviderReady bool

	closers []func() error
}

// New builds the pipeline. Optional infrastructure degrades instead of failing:
// no database means memory-only sessions, an unreachable Redis falls back to the
// in-process limiter. pub may be nil.
func New(ctx context.Context, cfg config.Config, pub chat.Publisher) (*App, error) {
	a := &App{Cfg: cfg}

	if cfg.DBDSN != "" {
		gdb, err := db.Connect(cfg.DBDSN, !cfg.IsProduction())
		if err != nil {
			logx.Warn().Err(err).Msg("database unavailable, sessions are memory-only")
		} else {
			if err := db.Migrate(gdb, append(chat.Models(), &models.User{})...); err != nil {
				return nil, err
			}
			a.DB = gdb
			a.Repo = chat.NewRepo(gdb)
			if sqlDB, err := gdb.DB(); err == nil {
				a.closers = append(a.closers, sqlDB.Close)
			}
		}
	}

	var opts []memory.Option
	if a.Repo != nil {
		opts = append(opts, memory.WithBackend(a.Repo))
	}
	a.Sessions = memory.NewManager(cfg.ChatContextWindowSize, opts...)

	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		logx.Warn().Err(err).Str("provider", cfg.AIProvider).Msg("language model unavailable, replies will apologize")
	}
	a.ProviderReady = provider != nil

	var caller ai.ToolCaller
	if tc, ok := provider.(ai.ToolCaller); ok {
		caller = tc
	}

	deps := chat.Deps{
		Sessions:                  a.Sessions,
		Limiter:                   a.limiter(ctx),
		Classifier:                intent.NewClassifier(caller, cfg.ClassifierTemperature),
		Provider:                  provider,
		FactualTemperature:        cfg.FactualTemperature,
		ConversationalTemperature: cfg.ConversationalTemperature,
		MaxTokens:                 cfg.MaxOutputTokens,
	}
	if a.Repo != nil {
		deps.Jobs = a.Repo
		if pub != nil {
			deps.Publisher = pub
		}
	}
	a.Service = chat.NewService(deps)

	logx.Info().
		Str("provider", cfg.AIProvider).
		Bool("provider_ready", a.ProviderReady).
		Bool("persistent", a.DB != nil).
		Bool("async", a.Service.AsyncEnabled()).
		Msg("chat pipeline ready")
	return a, nil
}

func (a *App) limiter(ctx context.Context) ratelimit.Limiter {
	cfg := a.Cfg
	if cfg.RateLimitBackend == "redis" {
		rds, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			a.closers = append(a.closers, rds.Close)
			return ratelimit.NewRedisLimiter(rds.Client, cfg.RateLimitMessages, cfg.RateLimitWindow)
		}
		logx.Warn().Err(err).Msg("redis unavailable, using in-process rate limiter")
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimitMessages, cfg.RateLimitWindow)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

var errMissingKey = errors.New("api key not configured")

// NewProvider resolves cfg.AIProvider through the registry. Hosted providers
// without a key are reported as unavailable.
func NewProvider(ctx context.Context, cfg config.Config) (ai.Provider, error) {
	reg := ai.NewRegistry()
	reg.Register("openai", func(_ context.Context, model string) (ai.Provider, error) {
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, errMissingKey
		}
		return ai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, lo.CoalesceOrEmpty(strings.TrimSpace(model), cfg.OpenAIModel)), nil
	})
	reg.Register("ollama", func(_ context.Context, model string) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, lo.CoalesceOrEmpty(strings.TrimSpace(model), cfg.OllamaModel)), nil
	})
	reg.Register("openrouter", func(_ context.Context, model string) (ai.Provider, error) {
		if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
			return nil, errMissingKey
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, lo.CoalesceOrEmpty(strings.TrimSpace(model), cfg.OpenRouterModel), cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	return reg.Get(ctx, cfg.AIProvider, "")
}
