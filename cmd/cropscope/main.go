package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mpetrov/cropscope"
	"github.com/mpetrov/cropscope/internal/config"
	"github.com/mpetrov/cropscope/internal/web"
	"github.com/mpetrov/cropscope/pkg/client"
	"github.com/mpetrov/cropscope/pkg/cropper"
	"github.com/mpetrov/cropscope/pkg/gvision"
	"github.com/mpetrov/cropscope/pkg/ingest"
	"github.com/mpetrov/cropscope/pkg/llamacpp"
	"github.com/mpetrov/cropscope/pkg/ollama"
)

func main() {
	var cfgPath, addr, backend, model, url, credsFile string
	var in, rect, ratio, out string
	var quality int

	flag.StringVar(&cfgPath, "config", "", "config file path (JSON)")
	flag.StringVar(&addr, "addr", "", "listen address for serve mode (overrides config)")
	flag.StringVar(&backend, "backend", "", "detection backend: vision, ollama or llamacpp (overrides config)")
	flag.StringVar(&model, "model", "", "model name for local backends (overrides config)")
	flag.StringVar(&url, "url", "", "server URL for local backends (overrides config)")
	flag.StringVar(&credsFile, "credentials", "", "service-account JSON file (overrides config)")

	flag.StringVar(&in, "in", "", "one-shot mode: input image path (jpg/png/webp)")
	flag.StringVar(&rect, "rect", "", "one-shot mode: crop rectangle x,y,w,h (default: whole image)")
	flag.StringVar(&ratio, "ratio", "free", "one-shot mode: aspect ratio free|1:1|16:9|4:3")
	flag.StringVar(&out, "out", "", "one-shot mode: also save the normalized crop here")
	flag.IntVar(&quality, "quality", 0, "submission JPEG quality 1-100 (overrides config)")

	flag.Parse()

	cfg := loadConfig(cfgPath)
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if backend != "" {
		cfg.Detection.Backend = backend
	}
	if model != "" {
		cfg.Detection.Model = model
	}
	if url != "" {
		cfg.Detection.URL = url
	}
	if credsFile != "" {
		cfg.Credentials.File = credsFile
	}
	if quality > 0 {
		cfg.Encoder.JPEGQuality = quality
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	locator, warn := buildLocator(cfg)

	if in != "" {
		runOnce(cfg, locator, warn, in, rect, ratio, out)
		return
	}

	srv := web.NewServer(cfg, locator, warn)
	if warn != "" {
		log.Printf("warning: %s", warn)
	}
	log.Printf("cropscope listening on %s (backend: %s)", cfg.Server.Addr, cfg.Detection.Backend)
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Routes()); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		if def := config.GetConfigPath(); fileExists(def) {
			path = def
		} else {
			return config.Default()
		}
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// buildLocator constructs the configured detection backend. A credential or
// connection failure disables detection with a warning instead of exiting:
// upload and crop stay usable.
func buildLocator(cfg *config.Config) (client.ObjectLocator, string) {
	switch cfg.Detection.Backend {
	case "ollama":
		serverURL := cfg.Detection.URL
		if serverURL == "" {
			serverURL = "http://localhost:11434"
		}
		c, err := ollama.NewClient(serverURL, cfg.Detection.Model)
		if err != nil {
			return nil, fmt.Sprintf("ollama backend unavailable: %v", err)
		}
		return c, ""
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.Detection.URL, cfg.Detection.Model)
		if err != nil {
			return nil, fmt.Sprintf("llama.cpp backend unavailable: %v", err)
		}
		return c, ""
	default: // vision
		creds, err := cfg.LoadCredentials()
		if err != nil {
			return nil, fmt.Sprintf("could not load Vision API credentials: %v", err)
		}
		if creds == nil {
			return nil, "could not load Vision API credentials: no secret configured"
		}
		c, err := gvision.New(context.Background(), creds, gvision.Config{
			MaxResults:   cfg.Detection.MaxResults,
			Retries:      cfg.Detection.Retries,
			RetryBackoff: 250 * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Sprintf("could not initialize Vision API client: %v", err)
		}
		return c, ""
	}
}

// runOnce loads, crops, normalizes, detects, and prints the rendered lines.
func runOnce(cfg *config.Config, locator client.ObjectLocator, warn, in, rect, ratioName, out string) {
	if locator == nil {
		log.Fatalf("cannot run detection: %s", warn)
	}

	img, err := ingest.LoadFile(in)
	if err != nil {
		log.Fatalf("failed to load %s: %v", filepath.Base(in), err)
	}

	r, err := cropper.ParseAspect(ratioName)
	if err != nil {
		log.Fatal(err)
	}

	sel := cropper.Default(img.Bounds(), r)
	if rect != "" {
		sel, err = parseRect(rect)
		if err != nil {
			log.Fatalf("invalid -rect: %v", err)
		}
		sel = sel.Clamp(img.Bounds()).FitRatio(r)
	}
	if err := sel.Validate(img.Bounds(), r); err != nil {
		log.Fatal(err)
	}

	pipeline := cropscope.NewWithQuality(locator, cfg.Encoder.JPEGQuality)

	if out != "" {
		crop, err := pipeline.Crop(img, sel)
		if err != nil {
			log.Fatal(err)
		}
		buf, err := pipeline.Normalize(crop)
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(out, buf, 0644); err != nil {
			log.Fatalf("failed to save crop: %v", err)
		}
		log.Printf("saved normalized crop to %s", out)
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Detection.TimeoutSeconds)*time.Second)
	defer cancel()

	result, err := pipeline.Detect(ctx, img, sel)
	if err != nil {
		log.Fatalf("detection failed: %v", err)
	}
	fmt.Println(pipeline.RenderText(result))
}

// parseRect parses "x,y,w,h".
func parseRect(s string) (cropper.Selection, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return cropper.Selection{}, fmt.Errorf("want x,y,w,h, got %q", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return cropper.Selection{}, err
		}
		vals[i] = v
	}
	return cropper.Selection{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
