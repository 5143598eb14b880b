package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/miradorstack/mirador-zones/internal/ingest"
	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/patterns"
	"github.com/miradorstack/mirador-zones/internal/report"
	"github.com/miradorstack/mirador-zones/internal/utils"
)

const (
	formatCSV   = "csv"
	formatStats = "stats"

	defaultMultipartMemory = 32 << 20
)

// RouterOptions configure the HTTP API.
type RouterOptions struct {
	Columns        ingest.Columns
	MaxUploadBytes int64
	AllowedOrigins []string
	Logger         *slog.Logger
}

// HTTPHandler serves the REST API over ZoneAnalytics.
type HTTPHandler struct {
	svc    ZoneAnalytics
	opts   RouterOptions
	logger *slog.Logger
}

// NewHTTPHandler constructs the REST handlers.
func NewHTTPHandler(svc ZoneAnalytics, opts RouterOptions) *HTTPHandler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Columns == (ingest.Columns{}) {
		opts.Columns = ingest.DefaultColumns()
	}
	return &HTTPHandler{svc: svc, opts: opts, logger: opts.Logger}
}

// NewRouter builds the REST router with panic recovery and CORS applied.
func NewRouter(svc ZoneAnalytics, opts RouterOptions) http.Handler {
	h := NewHTTPHandler(svc, opts)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{h.logger}), handlers.PrintRecoveryStack(false))
	return recovery(cors(router))
}

// RegisterRoutes registers the REST routes on router.
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/datasets", h.UploadDataset).Methods(http.MethodPost)
	api.HandleFunc("/datasets/current", h.CurrentDataset).Methods(http.MethodGet)
	api.HandleFunc("/datasets/current", h.ClearDataset).Methods(http.MethodDelete)
	api.HandleFunc("/transitions", h.Transitions).Methods(http.MethodGet)
	api.HandleFunc("/durations", h.Durations).Methods(http.MethodGet)
	api.HandleFunc("/scenarios", h.Scenarios).Methods(http.MethodGet)
	api.HandleFunc("/scenarios/match", h.MatchScenario).Methods(http.MethodGet)
	api.HandleFunc("/stalled", h.Stalled).Methods(http.MethodGet)
	api.HandleFunc("/patterns", h.Patterns).Methods(http.MethodGet)
}

// Health reports liveness and whether a dataset is loaded.
// GET /healthz
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	_, err := h.svc.Current()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         StatusOK,
		"dataset_loaded": err == nil,
	})
}

// UploadDataset extracts a new dataset from a multipart "file" field or the raw body.
// POST /api/v1/datasets?name=zones.xlsx
func (h *HTTPHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}

	name := r.URL.Query().Get("name")
	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(defaultMultipartMemory); err != nil {
			h.respondError(w, r, fmt.Errorf("%w: %w", models.ErrMalformedInput, err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			h.respondError(w, r, fmt.Errorf("%w: multipart field \"file\" is required", models.ErrMalformedInput))
			return
		}
		defer file.Close()
		body = file
		if name == "" {
			name = header.Filename
		}
	}
	if name == "" {
		name = "upload"
	}

	ds, err := h.svc.Upload(r.Context(), name, body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.logger.Info("dataset uploaded", slog.String("dataset_id", ds.ID), slog.String("source", name))
	respondJSON(w, http.StatusCreated, envelope(ToDatasetInfo(ds), len(ds.Events) == 0))
}

// CurrentDataset returns the current dataset and its KPIs.
// GET /api/v1/datasets/current
func (h *HTTPHandler) CurrentDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.Current()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	summary, err := h.svc.Summary(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"dataset": ToDatasetInfo(ds),
		"summary": summary,
	}, summary.Events == 0))
}

// ClearDataset forgets the current dataset.
// DELETE /api/v1/datasets/current
func (h *HTTPHandler) ClearDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transitions returns filtered transition events.
// GET /api/v1/transitions?zone=A&zone=B&from=2024-01-01&to=2024-03-31&transitions_only=true&scenario=A → B&format=csv
func (h *HTTPHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	events, err := h.svc.Transitions(r.Context(), filter, r.URL.Query().Get("scenario"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if wantsCSV(r) {
		h.respondCSV(w, r, "transitions.csv", func(out io.Writer) error {
			return report.WriteTransitions(out, h.opts.Columns, events)
		})
		return
	}
	respondJSON(w, http.StatusOK, envelope(events, len(events) == 0))
}

// Durations returns durations before the terminal zone.
// GET /api/v1/durations?min_days=10&format=csv|stats
func (h *HTTPHandler) Durations(w http.ResponseWriter, r *http.Request) {
	minDays := -1
	if raw := r.URL.Query().Get("min_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(w, r, fmt.Errorf("%w: min_days must be a non-negative integer", models.ErrInvalidArgument))
			return
		}
		minDays = n
	}
	result, err := h.svc.Durations(r.Context(), minDays)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case formatCSV:
		h.respondCSV(w, r, "durations.csv", func(out io.Writer) error {
			return report.WriteDurations(out, h.opts.Columns, result)
		})
	case formatStats:
		h.respondCSV(w, r, "duration_stats.csv", func(out io.Writer) error {
			return report.WriteDurationStats(out, result)
		})
	default:
		respondJSON(w, http.StatusOK, envelope(result, result.Empty()))
	}
}

// Scenarios lists the selectable scenarios.
// GET /api/v1/scenarios
func (h *HTTPHandler) Scenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.svc.Scenarios(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope(scenarios, len(scenarios) == 0))
}

// MatchScenario returns entities whose trajectory contains the path.
// GET /api/v1/scenarios/match?path=A → B&format=csv
func (h *HTTPHandler) MatchScenario(w http.ResponseWriter, r *http.Request) {
	match, err := h.svc.MatchScenario(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if wantsCSV(r) {
		h.respondCSV(w, r, "scenario.csv", func(out io.Writer) error {
			return report.WriteScenarioMatch(out, h.opts.Columns, match)
		})
		return
	}
	respondJSON(w, http.StatusOK, envelope(match, match.Empty()))
}

// Stalled lists entities that have not reached the terminal zone.
// GET /api/v1/stalled?format=csv
func (h *HTTPHandler) Stalled(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Stalled(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if wantsCSV(r) {
		h.respondCSV(w, r, "stalled.csv", func(out io.Writer) error {
			return report.WriteStalled(out, h.opts.Columns, result)
		})
		return
	}
	respondJSON(w, http.StatusOK, envelope(result, result.Empty()))
}

// Patterns returns the mined zone-to-zone patterns, optionally only those leading into a zone.
// GET /api/v1/patterns?to=Ч&format=csv
func (h *HTTPHandler) Patterns(w http.ResponseWriter, r *http.Request) {
	mined, err := h.svc.Patterns(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if to := r.URL.Query().Get("to"); to != "" {
		mined = patterns.EndingIn(mined, to)
	}
	if wantsCSV(r) {
		h.respondCSV(w, r, "patterns.csv", func(out io.Writer) error {
			return report.WritePatterns(out, mined)
		})
		return
	}
	respondJSON(w, http.StatusOK, envelope(mined, len(mined) == 0))
}

func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var filter models.Filter
	for _, raw := range q["zone"] {
		for _, zone := range strings.Split(raw, ",") {
			if zone = strings.TrimSpace(zone); zone != "" {
				filter.Zones = append(filter.Zones, zone)
			}
		}
	}
	var err error
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = utils.ParseDate(raw); err != nil {
			return filter, fmt.Errorf("%w: from: %v", models.ErrInvalidArgument, err)
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = utils.ParseDate(raw); err != nil {
			return filter, fmt.Errorf("%w: to: %v", models.ErrInvalidArgument, err)
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, fmt.Errorf("%w: to precedes from", models.ErrInvalidArgument)
	}
	if raw := q.Get("transitions_only"); raw != "" {
		if filter.TransitionsOnly, err = strconv.ParseBool(raw); err != nil {
			return filter, fmt.Errorf("%w: transitions_only: %v", models.ErrInvalidArgument, err)
		}
	}
	return filter, nil
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == formatCSV
}

func (h *HTTPHandler) respondCSV(w http.ResponseWriter, r *http.Request, filename string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := HTTPStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		msg = "internal error"
	}
	respondJSON(w, code, Envelope{Status: StatusError, Error: msg})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("encode JSON response failed", slog.Any("error", err))
	}
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic recovered", slog.String("panic", fmt.Sprint(v...)))
}

var _ handlers.RecoveryHandlerLogger = recoveryLogger{}
