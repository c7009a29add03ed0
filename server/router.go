// Package server exposes the pipeline over HTTP (JSON API, console pages,
// static assets) and over MCP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"youtubeSearch/core"
	"youtubeSearch/storage"
)

// Service is what the handlers need from the processing pipeline.
type Service interface {
	SearchSimilar(ctx context.Context, query string) (*core.SearchResult, error)
	SearchYouTube(ctx context.Context, query string) ([]core.VideoInfo, error)
	ChannelInfo(ctx context.Context, videoURL string) (*core.ChannelInfo, error)
	Transcript(ctx context.Context, videoURL string) (*core.TranscriptRecord, error)
	SaveChannel(ctx context.Context, channelID string) (string, error)
	SaveVideo(ctx context.Context, videoURL, method string) (*core.SaveVideoResult, error)
	CompareChunking(ctx context.Context, videoURL string) (*core.CompareResult, error)
	Store() storage.ChunkStore
}

// Console renders the browser console.
type Console interface {
	ServeIndex(w http.ResponseWriter, r *http.Request)
	ServeAction(w http.ResponseWriter, r *http.Request, action string)
}

type Deps struct {
	Service Service
	Health  *core.HealthMonitor
	Cache   *core.CacheManager
	Console Console // optional
	Version string
	Dev     bool // serve static files from disk
}

// NewRouter wires every route.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	api := &apiHandlers{svc: d.Service}
	mon := &MonitoringHandlers{svc: d.Service, health: d.Health, cache: d.Cache, version: d.Version}

	r.Get("/health", mon.HealthCheckHandler)
	r.Get("/stats", mon.StatsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", api.searchSimilar)
		r.Post("/youtube/search", api.searchYouTube)
		r.Post("/channel/info", api.channelInfo)
		r.Post("/transcript", api.transcript)
		r.Post("/channel/save", api.saveChannel)
		r.Post("/save-single-video", api.saveSingleVideo)
		r.Post("/save-single-video-semantic", api.saveSemanticVideo)
		r.Post("/compare-chunking", api.compareChunking)
	})

	r.Handle("/static/*", http.StripPrefix("/static", staticHandler(d.Dev)))

	if d.Console != nil {
		r.Get("/", d.Console.ServeIndex)
		r.Post("/ui/{action}", func(w http.ResponseWriter, r *http.Request) {
			d.Console.ServeAction(w, r, chi.URLParam(r, "action"))
		})
	}
	return r
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// cors allows any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
