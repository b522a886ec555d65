package scoreboardhandlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	scoreboardservice "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/application"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	msgTeamNotFound = "team not found"
	msgUnavailable  = "no scoreboard currently available"

	maxHistogramBuckets = 50
)

// backendStatus is implemented by sources that select among several backends.
type backendStatus interface {
	SelectedIndex() int
	LastRefresh() time.Time
}

// Options configures the status API.
type Options struct {
	AllowedOrigins []string
	// RequestsPerSecond limits each client; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// ScoreboardHandlers serves scoreboard data over HTTP.
type ScoreboardHandlers struct {
	source   scoreboardservice.Source
	rules    scoreboardservice.PeerRules
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	tracer   trace.Tracer
	palette  scoreboardservice.ChartPalette
}

func NewScoreboardHandlers(
	source scoreboardservice.Source,
	rules scoreboardservice.PeerRules,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
	tracer trace.Tracer,
) *ScoreboardHandlers {
	return &ScoreboardHandlers{
		source:   source,
		rules:    rules,
		gatherer: gatherer,
		logger:   logger,
		tracer:   tracer,
		palette:  scoreboardservice.DefaultChartPalette,
	}
}

// Routes builds the router.
func (h *ScoreboardHandlers) Routes(opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(opts.AllowedOrigins))

	r.Get("/healthz", h.Healthz)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if opts.RequestsPerSecond > 0 {
			limiter := NewClientLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
			r.Use(RateLimitMiddleware(limiter, h.logger))
		}
		r.Get("/scoreboard", h.GetScoreboard)
		r.Get("/teams/{teamID}", h.GetTeam)
		r.Get("/teams/{teamID}/rank", h.GetTeamRank)
		r.Get("/histogram.png", h.GetHistogram)
	})
	return r
}

type healthResponse struct {
	Status        string    `json:"status"`
	Kind          string    `json:"kind"`
	Round         string    `json:"round"`
	SelectedIndex *int      `json:"selectedIndex,omitempty"`
	LastRefresh   time.Time `json:"lastRefresh,omitzero"`
}

// Healthz reports which backend is serving. It never triggers resolution.
func (h *ScoreboardHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Kind:   h.source.Metadata().Kind.String(),
		Round:  h.source.Round().String(),
	}
	if status, ok := h.source.(backendStatus); ok {
		idx := status.SelectedIndex()
		resp.SelectedIndex = &idx
		resp.LastRefresh = status.LastRefresh()
		if idx < 0 {
			resp.Status = "unresolved"
		}
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// GetScoreboard serves the scoreboard narrowed by the division, tier, category
// and location query parameters.
func (h *ScoreboardHandlers) GetScoreboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ScoreboardHandlers.GetScoreboard")
	defer span.End()

	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("filter", filter.String()))

	summary, err := h.source.GetScoreboard(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, err, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, r, http.StatusOK, summary)
}

func (h *ScoreboardHandlers) GetTeam(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ScoreboardHandlers.GetTeam")
	defer span.End()

	team, ok := parseTeamID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("team_id", team.String()))

	details, err := h.source.GetDetails(ctx, team)
	if err != nil {
		h.writeError(ctx, w, err, http.StatusNotFound, msgTeamNotFound)
		return
	}
	h.writeJSON(w, r, http.StatusOK, details)
}

func (h *ScoreboardHandlers) GetTeamRank(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ScoreboardHandlers.GetTeamRank")
	defer span.End()

	team, ok := parseTeamID(w, r)
	if !ok {
		return
	}
	rank, err := scoreboardservice.RankAmongPeers(ctx, h.source, h.rules, team)
	if err != nil {
		h.writeError(ctx, w, err, http.StatusNotFound, msgTeamNotFound)
		return
	}
	h.writeJSON(w, r, http.StatusOK, rank)
}

// GetHistogram renders the score distribution of the filtered scoreboard as a PNG.
func (h *ScoreboardHandlers) GetHistogram(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ScoreboardHandlers.GetHistogram")
	defer span.End()

	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	buckets := scoreboardservice.DefaultHistogramBuckets
	if raw := r.URL.Query().Get("buckets"); raw != "" {
		buckets, err = strconv.Atoi(raw)
		if err != nil || buckets < 1 || buckets > maxHistogramBuckets {
			http.Error(w, "buckets must be between 1 and 50", http.StatusBadRequest)
			return
		}
	}

	summary, err := h.source.GetScoreboard(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, err, http.StatusBadRequest, err.Error())
		return
	}
	if len(summary.TeamList) == 0 {
		http.Error(w, "no teams match the filter", http.StatusNotFound)
		return
	}

	png, err := scoreboardservice.RenderHistogram(summary, buckets, h.source.Metadata().FormattingOptions, h.palette)
	if err != nil {
		h.writeError(ctx, w, err, http.StatusInternalServerError, "failed to render histogram")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=30")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.logger.WarnContext(ctx, "Failed to write histogram", "error", err)
	}
}

func parseTeamID(w http.ResponseWriter, r *http.Request) (scoretypes.TeamID, bool) {
	team, err := scoretypes.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return scoretypes.TeamID{}, false
	}
	return team, true
}

func parseFilter(r *http.Request) (scoretypes.ScoreboardFilterInfo, error) {
	q := r.URL.Query()
	division, err := scoretypes.ParseDivision(q.Get("division"))
	if err != nil {
		return scoretypes.NoFilter, err
	}
	tier, err := scoretypes.ParseTier(q.Get("tier"))
	if err != nil {
		return scoretypes.NoFilter, err
	}
	return scoretypes.ScoreboardFilterInfo{
		Division: division,
		Tier:     tier,
		Category: q.Get("category"),
		Location: q.Get("location"),
	}, nil
}

// writeError maps pipeline errors to responses. invalidStatus and invalidMsg
// are used for ErrInvalidArgument, whose meaning depends on the route.
func (h *ScoreboardHandlers) writeError(ctx context.Context, w http.ResponseWriter, err error, invalidStatus int, invalidMsg string) {
	var aggregate *scoretypes.AggregateError
	switch {
	case errors.Is(err, scoretypes.ErrInvalidArgument):
		http.Error(w, invalidMsg, invalidStatus)
	case errors.As(err, &aggregate), errors.Is(err, scoretypes.ErrOperationFailed):
		h.logger.WarnContext(ctx, "Scoreboard unavailable", "error", err)
		http.Error(w, msgUnavailable, http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, msgUnavailable, http.StatusServiceUnavailable)
	default:
		h.logger.ErrorContext(ctx, "Scoreboard request failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *ScoreboardHandlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to encode response", "error", err)
	}
}
