// Package web serves the single-page crop-and-detect tool: an embedded UI
// plus a small JSON API. One user action runs at a time; the session lock
// serializes upload, crop, and detect, matching the tool's single-threaded
// interaction model.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/mpetrov/cropscope/internal/config"
	"github.com/mpetrov/cropscope/internal/utils"
	"github.com/mpetrov/cropscope/pkg/client"
	"github.com/mpetrov/cropscope/pkg/cropper"
	"github.com/mpetrov/cropscope/pkg/ingest"
	"github.com/mpetrov/cropscope/pkg/normalize"
	"github.com/mpetrov/cropscope/pkg/render"
	"github.com/mpetrov/cropscope/pkg/session"
)

//go:embed static
var staticFiles embed.FS

// Server holds the single interactive session and its detection backend.
// The locator may be nil when credential loading failed at startup; upload
// and crop keep working and detect reports the warning instead.
type Server struct {
	cfg         *config.Config
	locator     client.ObjectLocator
	locatorWarn string

	mu      sync.Mutex
	machine *session.Machine
	img     image.Image
	format  string
	ratio   cropper.AspectRatio
	sel     cropper.Selection
}

// NewServer creates a Server. locatorWarn describes why the locator is nil
// and is surfaced to the UI.
func NewServer(cfg *config.Config, locator client.ObjectLocator, locatorWarn string) *Server {
	return &Server{
		cfg:         cfg,
		locator:     locator,
		locatorWarn: locatorWarn,
		machine:     session.NewMachine(),
		ratio:       cropper.Free,
	}
}

// Routes builds the HTTP mux for the tool.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/crop", s.handleCrop)
	mux.HandleFunc("/api/preview", s.handlePreview)
	mux.HandleFunc("/api/detect", s.handleDetect)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// stateResponse is the session snapshot returned by most endpoints.
type stateResponse struct {
	State     session.State     `json:"state"`
	Ready     bool              `json:"detector_ready"`
	Warning   string            `json:"warning,omitempty"`
	Width     int               `json:"width,omitempty"`
	Height    int               `json:"height,omitempty"`
	Format    string            `json:"format,omitempty"`
	Ratio     string            `json:"ratio,omitempty"`
	Selection cropper.Selection `json:"selection"`
	Ratios    []string          `json:"ratios,omitempty"`
}

func (s *Server) snapshot() stateResponse {
	resp := stateResponse{
		State:     s.machine.State(),
		Ready:     s.locator != nil,
		Warning:   s.locatorWarn,
		Ratio:     s.ratio.Name,
		Selection: s.sel,
	}
	for _, r := range cropper.Options() {
		resp.Ratios = append(resp.Ratios, r.Name)
	}
	if s.img != nil {
		resp.Width = s.img.Bounds().Dx()
		resp.Height = s.img.Bounds().Dy()
		resp.Format = s.format
	}
	return resp
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleUpload accepts a multipart image upload, enforces the jpg/jpeg/png
// boundary, and restarts the session around the new bitmap.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	maxBytes := s.cfg.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		respondError(w, "failed to parse upload form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "no file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !utils.AllowedUploadFilename(header.Filename) &&
		!utils.AllowedUploadType(header.Header.Get("Content-Type")) {
		respondError(w, fmt.Sprintf("unsupported upload type for %q: accepted types are jpg, jpeg, png", header.Filename), http.StatusUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "failed to read upload", http.StatusInternalServerError)
		return
	}

	img, format, err := ingest.Decode(data)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ingest.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		respondError(w, fmt.Sprintf("error reading image file: %v", err), status)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Apply(session.UploadReceived); err != nil {
		respondError(w, err.Error(), http.StatusConflict)
		return
	}
	s.img = img
	s.format = format
	s.sel = cropper.Default(img.Bounds(), s.ratio)

	log.Printf("upload accepted: %s (%s, %dx%d)",
		header.Filename, utils.FormatFileSize(int64(len(data))), img.Bounds().Dx(), img.Bounds().Dy())
	respondJSON(w, s.snapshot(), http.StatusOK)
}

// cropRequest is the live selection update sent while the user drags handles.
type cropRequest struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	W     int    `json:"w"`
	H     int    `json:"h"`
	Ratio string `json:"ratio"`
}

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid crop request", http.StatusBadRequest)
		return
	}
	ratio, err := cropper.ParseAspect(req.Ratio)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		respondError(w, "no image uploaded", http.StatusConflict)
		return
	}

	sel := cropper.Selection{X: req.X, Y: req.Y, W: req.W, H: req.H}
	sel = sel.Clamp(s.img.Bounds()).FitRatio(ratio)
	if err := sel.Validate(s.img.Bounds(), ratio); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.machine.Apply(session.CropChanged); err != nil {
		respondError(w, err.Error(), http.StatusConflict)
		return
	}
	s.ratio = ratio
	s.sel = sel

	respondJSON(w, s.snapshot(), http.StatusOK)
}

// handlePreview streams an encoded preview of the current crop for the
// "cropped result" panel.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil || s.sel.Empty() {
		respondError(w, "nothing to preview", http.StatusNotFound)
		return
	}

	crop, err := cropper.Apply(s.img, s.sel)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if max := s.cfg.Encoder.PreviewMaxDim; max > 0 {
		b := crop.Bounds()
		if b.Dx() > max || b.Dy() > max {
			crop = imaging.Fit(crop, max, max, imaging.Lanczos)
		}
	}

	switch s.cfg.Encoder.PreviewFormat {
	case "webp":
		w.Header().Set("Content-Type", "image/webp")
		if err := webp.Encode(w, crop, &webp.Options{Quality: float32(s.cfg.Encoder.JPEGQuality)}); err != nil {
			log.Printf("preview encode failed: %v", err)
		}
	default:
		buf, err := normalize.Normalize(crop, s.cfg.Encoder.JPEGQuality)
		if err != nil {
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(buf)
	}
}

// detectResponse carries the rendered outcome of one detection request.
type detectResponse struct {
	State    session.State    `json:"state"`
	Messages []render.Message `json:"messages"`
}

// handleDetect runs the normalization pipeline and one localization request.
// Every failure is rendered as a visible message; nothing propagates out of
// the handler.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locator == nil {
		respondError(w, "cannot run detection: "+s.locatorWarn, http.StatusServiceUnavailable)
		return
	}
	if s.img == nil || s.sel.Empty() {
		respondError(w, "select a crop region first", http.StatusConflict)
		return
	}
	if err := s.machine.Apply(session.DetectPressed); err != nil {
		respondError(w, err.Error(), http.StatusConflict)
		return
	}

	crop, err := cropper.Apply(s.img, s.sel)
	if err == nil {
		var buf []byte
		buf, err = normalize.Normalize(crop, s.cfg.Encoder.JPEGQuality)
		if err == nil {
			ctx, cancel := context.WithTimeout(r.Context(),
				time.Duration(s.cfg.Detection.TimeoutSeconds)*time.Second)
			defer cancel()

			result, lerr := s.locator.Localize(ctx, buf)
			if lerr != nil {
				err = lerr
			} else {
				s.machine.Apply(session.ResultReceived)
				respondJSON(w, detectResponse{
					State:    s.machine.State(),
					Messages: render.Render(result),
				}, http.StatusOK)
				return
			}
		}
	}

	s.machine.Apply(session.DetectFailed)
	log.Printf("detection failed: %v", err)
	respondJSON(w, detectResponse{
		State:    s.machine.State(),
		Messages: []render.Message{{Level: render.LevelError, Text: err.Error()}},
	}, http.StatusOK)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respondJSON(w, s.snapshot(), http.StatusOK)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
