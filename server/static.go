package server

import (
	"bytes"
	"compress/gzip"
	"embed"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

//go:embed static/*
var staticFS embed.FS

// staticDir is where DEV mode reads assets from.
const staticDir = "server/static"

// asset is a minified file and its gzipped form.
type asset struct {
	content     []byte
	gzipped     []byte
	contentType string
}

var (
	assets     map[string]*asset
	assetsOnce sync.Once
)

// loadAssets minifies and gzips every embedded file once.
func loadAssets() map[string]*asset {
	assetsOnce.Do(func() {
		assets = make(map[string]*asset)
		m := minify.New()
		m.AddFunc("text/css", css.Minify)
		m.AddFunc("text/javascript", js.Minify)
		m.AddFunc("application/javascript", js.Minify)
		m.AddFunc("image/svg+xml", svg.Minify)

		err := fs.WalkDir(staticFS, "static", func(filePath string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := staticFS.ReadFile(filePath)
			if err != nil {
				return err
			}

			contentType := mime.TypeByExtension(filepath.Ext(filePath))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			servePath := strings.TrimPrefix(filePath, "static/")

			minified := data
			mediaType := strings.Split(contentType, ";")[0]
			if _, _, fn := m.Match(mediaType); fn != nil {
				var buf bytes.Buffer
				if err := m.Minify(mediaType, &buf, bytes.NewReader(data)); err != nil {
					slog.Warn("static: minify failed, serving unminified", slog.String("file", servePath), slog.Any("error", err))
				} else {
					minified = buf.Bytes()
					slog.Debug("static: minified",
						slog.String("file", servePath), slog.Int("from", len(data)), slog.Int("to", len(minified)))
				}
			}

			gzipped, err := gzipBytes(minified)
			if err != nil {
				// served uncompressed
				slog.Warn("static: gzip failed", slog.String("file", servePath), slog.Any("error", err))
				gzipped = nil
			}

			assets[servePath] = &asset{content: minified, gzipped: gzipped, contentType: contentType}
			return nil
		})
		if err != nil {
			slog.Warn("static: failed to process embedded assets", slog.Any("error", err))
		}
		slog.Info("static: assets ready", slog.Int("count", len(assets)))
	})
	return assets
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// staticHandler serves embedded, minified and gzipped assets. In dev mode
// files come straight from disk.
func staticHandler(dev bool) http.Handler {
	if dev {
		slog.Info("static: development mode, serving from disk", slog.String("dir", staticDir))
		return http.FileServer(http.Dir(staticDir))
	}
	cache := loadAssets()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		a, ok := cache[p]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", a.contentType)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("Vary", "Accept-Encoding")
		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") && len(a.gzipped) > 0 {
			w.Header().Set("Content-Encoding", "gzip")
			w.Write(a.gzipped)
			return
		}
		w.Write(a.content)
	})
}
