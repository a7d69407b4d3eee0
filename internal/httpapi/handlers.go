package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/model"
)

var validLevels = map[string]struct{}{"all": {}, "l0": {}, "l1": {}, "l2": {}, "l3": {}}

// handleChat runs one Agent Facade turn. A Chat error means no response
// text could be produced at all (the fast path's own failures are already
// absorbed internally), so it surfaces as 503 per spec.md §7's
// user-visible-behaviour policy.
func (s *Server) handleChat(c echo.Context) error {
	ctx := c.Request().Context()
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid request body", "invalid_request")
	}
	if req.Message == "" {
		return writeError(c, http.StatusBadRequest, "message is required", "invalid_request")
	}

	result, err := s.agent.Chat(ctx, req.Message)
	if err != nil {
		s.log.Warn(ctx, "chat turn failed", zap.Error(err))
		return writeError(c, http.StatusServiceUnavailable, "no response could be produced", "chat_failed")
	}

	return c.JSON(http.StatusOK, chatResponse{
		Response:         result.Text,
		ContextCount:     result.ContextCount,
		StrategiesUsed:   result.StrategiesUsed,
		ProcessingTimeMS: result.ProcessingTimeMS,
	})
}

func (s *Server) handleMemoryStats(c echo.Context) error {
	stats, err := s.agent.Memory().GetStats(c.Request().Context())
	if err != nil {
		return writeStoreError(c, err)
	}
	resp := statsResponse{L0Count: stats.L0Size, L1Count: stats.L1Size, L2Count: stats.L2Size, L3Count: stats.L3Size}
	if !stats.LastConsolidationAt.IsZero() {
		ts := stats.LastConsolidationAt.UTC().Format(time.RFC3339)
		resp.LastConsolidation = &ts
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMemoryLevel(c echo.Context) error {
	level := c.Param("level")
	if _, ok := validLevels[level]; !ok {
		return writeError(c, http.StatusBadRequest, fmt.Sprintf("unknown level %q", level), "invalid_level")
	}

	items, err := s.agent.Memory().ListLevel(c.Request().Context(), level)
	if err != nil {
		return writeStoreError(c, err)
	}

	out := make([]memoryItem, len(items))
	for i, it := range items {
		conns := it.Connections
		if conns == nil {
			conns = []string{}
		}
		out[i] = memoryItem{
			ID:          it.ID,
			Label:       it.Label,
			Content:     it.Content,
			Level:       it.Level,
			Importance:  it.Importance,
			CreatedAt:   it.CreatedAt.UTC().Format(time.RFC3339),
			Connections: conns,
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleConsolidate(c echo.Context) error {
	counters, err := s.agent.Memory().Consolidate(c.Request().Context())
	if err != nil {
		return writeStoreError(c, err)
	}
	l0, l1 := counters.L0ToL1, counters.L1ToL2
	return c.JSON(http.StatusOK, consolidateResponse{Status: "ok", L0ToL1: &l0, L1ToL2: &l1})
}

func (s *Server) handleRemember(c echo.Context) error {
	var req rememberRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid request body", "invalid_request")
	}
	if req.Content == "" {
		return writeError(c, http.StatusBadRequest, "content is required", "invalid_request")
	}
	importance := 0.5
	if req.Importance != nil {
		importance = *req.Importance
	}

	id, err := s.agent.Memory().Remember(c.Request().Context(), req.Content, importance, nil)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, rememberResponse{Status: "ok", ID: id})
}

// handleHealth reports per-component health via a bounded get_stats probe,
// which touches both the volatile store and the graph store. Degraded
// backoff-state tracking (spec.md §7: "degraded if at least one dependency
// is in retry backoff") is not yet surfaced by internal/retry, so health is
// binary today: ok, or unhealthy if reads cannot be served at all.
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	components := map[string]string{"volatile": "ok", "graph": "ok"}
	status := "ok"
	if _, err := s.agent.Memory().GetStats(ctx); err != nil {
		status = "unhealthy"
		components["volatile"] = "unhealthy"
		components["graph"] = "unhealthy"
	}
	return c.JSON(http.StatusOK, healthResponse{Status: status, Components: components})
}

func writeError(c echo.Context, status int, message, code string) error {
	return c.JSON(status, errorResponse{Error: message, Code: code})
}

func writeStoreError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrValidation):
		return writeError(c, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, model.ErrNotFound):
		return writeError(c, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, model.ErrCancelled):
		return writeError(c, http.StatusRequestTimeout, err.Error(), "cancelled")
	case errors.Is(err, model.ErrStoreUnavailable):
		return writeError(c, http.StatusServiceUnavailable, err.Error(), "store_unavailable")
	default:
		return writeError(c, http.StatusInternalServerError, err.Error(), "internal_error")
	}
}
