package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"youtubeSearch/config"
	"youtubeSearch/core"
	"youtubeSearch/processors"
	"youtubeSearch/server"
	"youtubeSearch/storage"
	"youtubeSearch/webui"
	"youtubeSearch/youtube"
)

const version = "1.0.0"

// services is everything one process shares between its surfaces.
type services struct {
	cfg      *config.Config
	store    storage.ChunkStore
	cache    *core.CacheManager
	health   *core.HealthMonitor
	pipeline *processors.Pipeline
}

func (s *services) Close() {
	if err := s.store.Close(); err != nil {
		slog.Warn("close vector store", slog.Any("error", err))
	}
	s.cache.Close()
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	// stdout belongs to the MCP transport, so logs always go to stderr
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func initServices(ctx context.Context, cfg *config.Config) *services {
	report := config.ValidateConfigWithGlobalValidator(cfg)
	if !report.Valid {
		slog.Warn("configuration has problems", slog.Int("errors", report.Summary.TotalErrors))
		for _, line := range strings.Split(strings.TrimSpace(report.GetFormattedReport()), "\n") {
			slog.Warn(line)
		}
	}

	store := storage.NewStore(ctx, cfg)
	cache := core.NewCacheManager(cfg.RedisURL, cfg.CacheTTL, cfg.CacheMaxEntries, 5*time.Minute)

	health := core.NewHealthMonitor()
	health.Register("vector_store", store.Ping)

	// a nil embedder keeps the service up; embedding operations then
	// report a configuration error
	var emb storage.Embedder
	if e, err := storage.NewOpenAIEmbedder(cfg); err != nil {
		slog.Warn("embeddings disabled", slog.Any("error", err))
	} else {
		emb = e
	}
	if !cfg.HasYouTubeAPI() {
		slog.Warn("YOUTUBE_API_KEY not set, YouTube search and channel lookups will fail")
	}

	yt := youtube.NewClientFromConfig(cfg)
	return &services{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		health:   health,
		pipeline: processors.NewPipeline(cfg, yt, emb, store, cache, health),
	}
}

func serve(ctx context.Context, svc *services) error {
	console, err := webui.NewConsole(webui.NewAPIClient(svc.cfg.APIBaseURL, nil))
	if err != nil {
		return fmt.Errorf("console templates: %w", err)
	}

	srv := &http.Server{
		Addr: ":" + svc.cfg.Port,
		Handler: server.NewRouter(server.Deps{
			Service: svc.pipeline,
			Health:  svc.health,
			Cache:   svc.cache,
			Console: console,
			Version: version,
			Dev:     svc.cfg.Dev,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", slog.String("addr", srv.Addr), slog.String("api_base_url", svc.cfg.APIBaseURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down services...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("all services shut down gracefully")
	return nil
}

// runConsole performs one console action against the running API and
// prints the rendered container.
func runConsole(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: youtubeSearch console <action> <input> [chunk_method]\nactions: %s",
			strings.Join(webui.Actions(), ", "))
	}
	console, err := webui.NewConsole(webui.NewAPIClient(cfg.APIBaseURL, nil))
	if err != nil {
		return err
	}
	var input, method string
	if len(args) > 1 {
		input = args[1]
	}
	if len(args) > 2 {
		method = args[2]
	}
	out, err := console.Run(ctx, args[0], input, method)
	if err != nil {
		return err
	}
	if out.Alert != "" {
		fmt.Fprintln(os.Stderr, out.Alert)
		return nil
	}
	fmt.Println(out.HTML)
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: youtubeSearch [command]")
	fmt.Fprintln(os.Stderr, "  serve    - HTTP API and console (default)")
	fmt.Fprintln(os.Stderr, "  mcp      - MCP tools over stdio")
	fmt.Fprintln(os.Stderr, "  console  - run one console action: console <action> <input> [chunk_method]")
	fmt.Fprintln(os.Stderr, "  check    - validate configuration")
}

var errInvalidConfig = errors.New("invalid configuration")

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "serve":
		svc := initServices(ctx, cfg)
		defer svc.Close()
		return serve(ctx, svc)

	case "mcp":
		svc := initServices(ctx, cfg)
		defer svc.Close()
		slog.Info("starting MCP server", slog.String("transport", "stdio"))
		return server.RunMCP(ctx, svc.pipeline, version)

	case "console":
		return runConsole(ctx, cfg, args)

	case "check":
		report := config.ValidateConfigWithGlobalValidator(cfg)
		fmt.Print(report.GetFormattedReport())
		if !report.Valid {
			config.PrintConfigInstructions()
			return errInvalidConfig
		}
		return nil
	}

	usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		config.PrintConfigInstructions()
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd, args := "serve", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}
	err = run(ctx, cfg, cmd, args)
	stop()
	if err != nil {
		slog.Error("exited with error", slog.String("command", cmd), slog.Any("error", err))
		os.Exit(1)
	}
}
