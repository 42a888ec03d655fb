// Command assistantd serves the Gemini assistant's HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/genai"

	"github.com/tessara/gemini-assistant/internal/api"
	"github.com/tessara/gemini-assistant/internal/assembler"
	"github.com/tessara/gemini-assistant/internal/config"
	"github.com/tessara/gemini-assistant/internal/orchestrator"
	"github.com/tessara/gemini-assistant/internal/provider/gemini"
	"github.com/tessara/gemini-assistant/internal/ratelimit"
	"github.com/tessara/gemini-assistant/internal/store"
	"github.com/tessara/gemini-assistant/internal/tool"
	"github.com/tessara/gemini-assistant/internal/tool/builtin"
)

const defaultListenAddr = ":8090"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader()
	fileCfg, err := loader.Load()
	if err != nil {
		return err
	}

	st, err := store.Open(fileCfg.DatabasePath, logger)
	if err != nil {
		return err
	}

	// The settings source and the resolver reference each other: settings
	// updates invalidate the resolver's cache.
	source := store.NewSettingsSource(st, nil)
	resolver := config.NewResolver(source, loader, logger)
	source.SetOnUpdate(resolver.Invalidate)

	// The SDK client is constructed once; the API key resolved at startup
	// may come from the settings record or the config file. A missing key
	// is not fatal here: requests answer with a "not configured" message
	// until a key is saved and the process restarted.
	var geminiClient gemini.GeminiClient
	resolved, err := resolver.Resolve(ctx)
	switch {
	case err == nil:
		sdk, cerr := genai.NewClient(ctx, &genai.ClientConfig{APIKey: resolved.APIKey})
		if cerr != nil {
			return cerr
		}
		geminiClient = gemini.NewRealGeminiClient(sdk)
	case errors.Is(err, config.ErrAPIKeyMissing):
		logger.Warn("no API key configured; generation requests will be refused")
		geminiClient = unconfiguredClient{}
	default:
		return err
	}

	model := config.DefaultModel
	if resolved != nil {
		model = resolved.Model
	}
	provider := gemini.New(geminiClient, model, logger)

	asm := assembler.New(geminiClient, nil, logger)

	limiter := ratelimit.NewLimiter(ratelimit.DefaultMaxRequests, time.Minute)
	retrier := ratelimit.NewRetrier(ratelimit.DefaultMaxAttempts, 2*time.Second, logger)

	registry := tool.NewRegistry()
	if err := builtin.RegisterAll(registry, st); err != nil {
		return err
	}
	legacy := &tool.SubprocessRunner{Command: []string{"python3", "-I", "-"}}
	gateway := tool.NewGateway(registry, legacy, st, logger)

	orch := orchestrator.New(
		resolver, provider, asm, limiter, retrier,
		gateway, registry, st, st, nil, logger,
	)

	fileBase := os.Getenv("ASSISTANT_FILE_DIR")
	if fileBase == "" {
		fileBase = "data/files"
	}
	server := api.NewServer(orch, st, api.DirFileResolver(fileBase), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	server.RegisterRoutes(router.Group("/api/assistant"))

	addr := fileCfg.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}

	srv := &http.Server{Addr: addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// unconfiguredClient stands in when no API key exists at startup. Every
// call fails with the configuration sentinel.
type unconfiguredClient struct{}

func (unconfiguredClient) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, config.ErrAPIKeyMissing
}

func (unconfiguredClient) UploadFile(context.Context, string, string) (string, string, error) {
	return "", "", config.ErrAPIKeyMissing
}
