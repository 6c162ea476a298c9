package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/harborstack/channelwatch/internal/interpret"
	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/utils"
)

// DetectionAPI is the service surface the HTTP handlers require.
type DetectionAPI interface {
	Detect(ctx context.Context, req models.StructuredRequest) (models.Finding, error)
	Ask(ctx context.Context, question string) (models.Finding, error)
	History(ctx context.Context, req models.ListFindingsRequest) ([]models.Finding, error)
	Patterns(ctx context.Context, channelID string) ([]models.ChannelPattern, error)
}

// Handler serves the JSON API.
type Handler struct {
	logger  *slog.Logger
	service DetectionAPI
}

// NewHandler wires the service into an http.Handler.
func NewHandler(logger *slog.Logger, service DetectionAPI) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/detect", h.handleDetect)
	mux.HandleFunc("POST /api/v1/ask", h.handleAsk)
	mux.HandleFunc("GET /api/v1/findings", h.handleFindings)
	mux.HandleFunc("GET /api/v1/patterns", h.handlePatterns)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

type detectRequest struct {
	ChannelID     string `json:"channel_id"`
	ReferenceDate string `json:"reference_date"`
}

type askRequest struct {
	Question string `json:"question"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	var body detectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ChannelID == "" || body.ReferenceDate == "" {
		writeError(w, http.StatusBadRequest, "channel_id and reference_date are required")
		return
	}
	referenceDate, err := utils.ParseDay(body.ReferenceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reference_date must be YYYY-MM-DD")
		return
	}

	finding, err := h.service.Detect(r.Context(), models.StructuredRequest{
		ChannelID:     body.ChannelID,
		ReferenceDate: referenceDate,
	})
	if err != nil {
		h.writeDetectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finding)
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	finding, err := h.service.Ask(r.Context(), body.Question)
	if err != nil {
		h.writeDetectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finding)
}

func (h *Handler) handleFindings(w http.ResponseWriter, r *http.Request) {
	req := models.ListFindingsRequest{ChannelID: r.URL.Query().Get("channel")}

	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err := utils.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		req.Start = start
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		end, err := utils.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		req.End = end
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		req.Limit = limit
	}

	findings, err := h.service.History(r.Context(), req)
	if err != nil {
		h.logger.Error("list findings failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list findings")
		return
	}
	if findings == nil {
		findings = []models.Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": findings})
}

func (h *Handler) handlePatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.service.Patterns(r.Context(), r.URL.Query().Get("channel"))
	if err != nil {
		h.logger.Error("mine patterns failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to mine patterns")
		return
	}
	if patterns == nil {
		patterns = []models.ChannelPattern{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns})
}

// writeDetectionError maps pipeline failures onto HTTP statuses. Interpretation
// failures are the caller's to fix; upstream data gaps are reported as bad
// gateway so clients can retry later.
func (h *Handler) writeDetectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interpret.ErrUnsupportedChannel),
		errors.Is(err, interpret.ErrAmbiguousChannel),
		errors.Is(err, interpret.ErrUnresolvedDate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrDataUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "detection timed out")
	default:
		h.logger.Error("detection failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "detection failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// RequestLogger wraps a handler with basic request logging.
func RequestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)))
	})
}
