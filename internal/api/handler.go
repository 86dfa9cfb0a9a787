package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/pocketmarket/moderation/internal/audit"
	"github.com/pocketmarket/moderation/internal/service"
	"github.com/rs/zerolog"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const (
	standingWindow     = 24 * time.Hour
	standingLimit      = 20
	healthCheckTimeout = 2 * time.Second
)

// StrikeStore reads and clears per-user strikes.
type StrikeStore interface {
	Strikes(ctx context.Context, user string) (int, error)
	Cooldown(ctx context.Context, user string) (time.Duration, string, error)
	Clear(ctx context.Context, user string) error
}

// FlagLog reads audit history.
type FlagLog interface {
	CountRecent(ctx context.Context, userID string, window time.Duration) (int, error)
	Recent(ctx context.Context, userID string, limit int) ([]audit.Record, error)
}

// CheckFunc pings a dependency for the health endpoint.
type CheckFunc func(ctx context.Context) error

type Handler struct {
	moderator *service.Moderator
	strikes   StrikeStore
	flags     FlagLog
	logger    zerolog.Logger

	checkNames []string
	checks     map[string]CheckFunc
}

// NewHandler creates the HTTP handler. strikes and flags may be nil, in which
// case the user endpoints report empty history.
func NewHandler(moderator *service.Moderator, strikes StrikeStore, flags FlagLog, logger zerolog.Logger) *Handler {
	return &Handler{
		moderator: moderator,
		strikes:   strikes,
		flags:     flags,
		logger:    logger.With().Str("component", "api").Logger(),
		checks:    make(map[string]CheckFunc),
	}
}

// AddCheck registers a dependency check reported by the health endpoint.
// It must be called before the handler serves requests.
func (h *Handler) AddCheck(name string, check CheckFunc) {
	if _, ok := h.checks[name]; !ok {
		h.checkNames = append(h.checkNames, name)
	}
	h.checks[name] = check
}

// POST /api/v1/moderation/listings
func (h *Handler) CheckListing(req *restful.Request, resp *restful.Response) {
	var body service.ListingCheckRequest
	if err := req.ReadEntity(&body); err != nil {
		h.logger.Warn().Err(err).Msg("failed to parse listing check")
		HandleError(resp, err, http.StatusBadRequest)
		return
	}

	result, err := h.moderator.CheckListing(req.Request.Context(), body)
	if err != nil {
		h.writeCheckError(resp, err)
		return
	}
	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// POST /api/v1/moderation/messages
func (h *Handler) CheckMessage(req *restful.Request, resp *restful.Response) {
	var body service.MessageCheckRequest
	if err := req.ReadEntity(&body); err != nil {
		h.logger.Warn().Err(err).Msg("failed to parse message check")
		HandleError(resp, err, http.StatusBadRequest)
		return
	}

	result, err := h.moderator.CheckMessage(req.Request.Context(), body)
	if err != nil {
		h.writeCheckError(resp, err)
		return
	}
	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

func (h *Handler) writeCheckError(resp *restful.Response, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		HandleError(resp, err, http.StatusBadRequest)
	case errors.Is(err, service.ErrRateLimited):
		HandleError(resp, err, http.StatusTooManyRequests)
	case errors.Is(err, service.ErrCoolingDown):
		var cd *service.CooldownError
		if errors.As(err, &cd) {
			resp.AddHeader("Retry-After", strconv.FormatInt(cd.Seconds(), 10))
		}
		HandleError(resp, err, http.StatusForbidden)
	default:
		h.logger.Error().Err(err).Msg("check failed")
		HandleError(resp, err, http.StatusInternalServerError)
	}
}

// GET /api/v1/moderation/users/{user_id}
func (h *Handler) UserStanding(req *restful.Request, resp *restful.Response) {
	userID := req.PathParameter("user_id")
	ctx := req.Request.Context()

	standing := UserStanding{UserID: userID, RecentFlags: []FlagRecord{}}

	if h.strikes != nil {
		n, err := h.strikes.Strikes(ctx, userID)
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read strikes")
			HandleError(resp, err, http.StatusInternalServerError)
			return
		}
		remaining, category, err := h.strikes.Cooldown(ctx, userID)
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read cooldown")
			HandleError(resp, err, http.StatusInternalServerError)
			return
		}
		standing.Strikes = n
		standing.CooldownSeconds = int64(remaining / time.Second)
		standing.CooldownCategory = category
	}

	if h.flags != nil {
		count, err := h.flags.CountRecent(ctx, userID, standingWindow)
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to count flags")
			HandleError(resp, err, http.StatusInternalServerError)
			return
		}
		recs, err := h.flags.Recent(ctx, userID, standingLimit)
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list flags")
			HandleError(resp, err, http.StatusInternalServerError)
			return
		}
		standing.FlagsLast24h = count
		standing.RecentFlags = toFlagRecords(recs)
	}

	resp.WriteHeaderAndEntity(http.StatusOK, standing)
}

// DELETE /api/v1/moderation/users/{user_id}/strikes
func (h *Handler) ClearStrikes(req *restful.Request, resp *restful.Response) {
	userID := req.PathParameter("user_id")
	if h.strikes == nil {
		HandleError(resp, errors.New("strike store not configured"), http.StatusServiceUnavailable)
		return
	}
	if err := h.strikes.Clear(req.Request.Context(), userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to clear strikes")
		HandleError(resp, err, http.StatusInternalServerError)
		return
	}
	h.logger.Info().Str("user_id", userID).Msg("strikes cleared")
	resp.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/health
// Checks run in registration order. Any failure reports "degraded" with a 503.
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	health := HealthResponse{
		Status:        "ok",
		Version:       Version,
		FilterVersion: h.moderator.FilterVersion(),
	}

	if len(h.checkNames) > 0 {
		ctx, cancel := context.WithTimeout(req.Request.Context(), healthCheckTimeout)
		defer cancel()

		health.Dependencies = make(map[string]string, len(h.checkNames))
		for _, name := range h.checkNames {
			if err := h.checks[name](ctx); err != nil {
				h.logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
				health.Dependencies[name] = "down"
				health.Status = "degraded"
				continue
			}
			health.Dependencies[name] = "up"
		}
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	resp.WriteHeaderAndEntity(status, health)
}
