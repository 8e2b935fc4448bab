package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/beezap/internal/common"
	"github.com/example/beezap/internal/delivery"
	"github.com/example/beezap/internal/graph"
	"github.com/example/beezap/internal/whatsapp"
)

var (
	reqCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total number of gateway API requests",
	}, []string{"route", "status"})
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Latency for gateway API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	renderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_graph_render_duration_seconds",
		Help:    "Time spent waiting for the graph renderer",
		Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
	})
)

// Sessions hands out the messenger once the WhatsApp session is usable.
type Sessions interface {
	Messenger() (whatsapp.Messenger, error)
	State() whatsapp.State
}

type Renderer interface {
	Render(ctx context.Context, itemID string) ([]byte, error)
}

type Handler struct {
	sessions  Sessions
	renderer  Renderer
	recorder  *delivery.Recorder
	uploadDir string
	maxUpload int64
	tracer    trace.Tracer
	logger    zerolog.Logger
	started   time.Time
}

func NewHandler(sessions Sessions, renderer Renderer, recorder *delivery.Recorder, uploadDir string, logger zerolog.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		renderer:  renderer,
		recorder:  recorder,
		uploadDir: uploadDir,
		maxUpload: 64 << 20,
		tracer:    otel.Tracer("gateway"),
		logger:    logger,
		started:   time.Now(),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/message", h.sendMessage)
		r.Post("/file", h.sendFile)
		r.Post("/zabbix-graph", h.sendGraph)
		r.Get("/groups", h.listGroups)
	})
	return r
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	const route = "message"
	ctx, span := h.tracer.Start(r.Context(), "send-message")
	defer span.End()
	defer observe(route, time.Now())

	var req messageRequest
	if err := decodeRequest(r, &req); err != nil {
		h.respondErr(ctx, w, route, http.StatusBadRequest, err.Error(), "", err)
		return
	}
	if req.Number == "" || req.Message == "" {
		h.respondErr(ctx, w, route, http.StatusBadRequest, `Parameters "number" and "message" are required.`, "", nil)
		return
	}
	m, ok := h.messenger(ctx, w, route)
	if !ok {
		return
	}

	chat := whatsapp.ResolveChatID(req.Number)
	span.SetAttributes(attribute.String("chat.id", chat.String()))
	err := m.SendText(ctx, chat, req.Message)
	h.record(ctx, chat, delivery.KindText, "", err)
	if err != nil {
		h.respondErr(ctx, w, route, http.StatusInternalServerError, "Error sending message", "", err)
		return
	}

	common.WithContext(ctx, h.logger).Info().Str("number", req.Number).Msg("message sent")
	h.respondJSON(w, route, http.StatusOK, map[string]string{"message": "Message sent successfully"})
}

func (h *Handler) sendGraph(w http.ResponseWriter, r *http.Request) {
	const route = "zabbix-graph"
	ctx, span := h.tracer.Start(r.Context(), "send-graph")
	defer span.End()
	defer observe(route, time.Now())

	var req graphRequest
	if err := decodeRequest(r, &req); err != nil {
		h.respondErr(ctx, w, route, http.StatusBadRequest, err.Error(), "", err)
		return
	}
	itemID := string(req.ItemID)
	if req.Number == "" || itemID == "" {
		h.respondErr(ctx, w, route, http.StatusBadRequest, `Parameters "number" and "itemId" are required.`, "", nil)
		return
	}
	if !isDigits(itemID) {
		h.respondErr(ctx, w, route, http.StatusBadRequest, errItemIDNotNumeric.Error(), "", nil)
		return
	}
	span.SetAttributes(attribute.String("zabbix.item_id", itemID))
	m, ok := h.messenger(ctx, w, route)
	if !ok {
		return
	}

	start := time.Now()
	img, err := h.renderer.Render(ctx, itemID)
	renderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		details := err.Error()
		var renderErr *graph.RenderError
		if errors.As(err, &renderErr) && renderErr.Diagnostic != "" {
			details = renderErr.Diagnostic
		}
		h.respondErr(ctx, w, route, http.StatusInternalServerError, "Failed to fetch Zabbix graph.", details, err)
		return
	}
	common.WithContext(ctx, h.logger).Info().Str("item_id", itemID).Int("bytes", len(img)).Msg("graph rendered")

	chat := whatsapp.ResolveChatID(req.Number)
	media := whatsapp.Media{Data: img, MimeType: "image/png", FileName: "graph_" + itemID + ".png"}
	err = m.SendMedia(ctx, chat, media, req.Caption)
	h.record(ctx, chat, delivery.KindGraph, itemID, err)
	if err != nil {
		h.respondErr(ctx, w, route, http.StatusInternalServerError, "Failed to send graph to WhatsApp.", "", err)
		return
	}

	common.WithContext(ctx, h.logger).Info().Str("number", req.Number).Str("item_id", itemID).Msg("graph sent")
	h.respondJSON(w, route, http.StatusOK, map[string]string{"message": "Graph sent successfully!"})
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	const route = "groups"
	ctx, span := h.tracer.Start(r.Context(), "list-groups")
	defer span.End()
	defer observe(route, time.Now())

	logger := common.WithContext(ctx, h.logger)
	logger.Info().Msg("listing groups")

	m, ok := h.messenger(ctx, w, route)
	if !ok {
		return
	}
	all, err := m.Groups(ctx)
	if err != nil {
		h.respondErr(ctx, w, route, http.StatusInternalServerError, "Error fetching group list.", "", err)
		return
	}

	groups := make([]whatsapp.Group, 0, len(all))
	for _, g := range all {
		if whatsapp.ChatID(g.ID).IsGroup() {
			groups = append(groups, g)
		}
	}
	logger.Info().Int("count", len(groups)).Msg("groups found")
	h.respondJSON(w, route, http.StatusOK, groups)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	state := h.sessions.State()
	status := "ok"
	if state != whatsapp.StateReady {
		status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         status,
		"session":        state.String(),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

func (h *Handler) messenger(ctx context.Context, w http.ResponseWriter, route string) (whatsapp.Messenger, bool) {
	m, err := h.sessions.Messenger()
	if err != nil {
		h.respondErr(ctx, w, route, http.StatusServiceUnavailable, "WhatsApp session is not ready", "", err)
		return nil, false
	}
	return m, true
}

func (h *Handler) record(ctx context.Context, chat whatsapp.ChatID, kind delivery.Kind, itemID string, sendErr error) {
	d := delivery.Delivery{ChatID: chat.String(), Kind: kind, ItemID: itemID, Status: delivery.StatusSent}
	if sendErr != nil {
		d.Status = delivery.StatusFailed
		d.Error = sendErr.Error()
	}
	h.recorder.Record(ctx, d)
}

func (h *Handler) respondJSON(w http.ResponseWriter, route string, status int, body any) {
	reqCounter.WithLabelValues(route, http.StatusText(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) respondErr(ctx context.Context, w http.ResponseWriter, route string, status int, msg, details string, err error) {
	logger := common.WithContext(ctx, h.logger)
	event := logger.Error()
	if status < http.StatusInternalServerError {
		event = logger.Warn()
	}
	event.Err(err).Str("route", route).Int("status", status).Str("details", details).Msg(msg)

	if err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
	}

	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	h.respondJSON(w, route, status, body)
}

func observe(route string, start time.Time) {
	requestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
