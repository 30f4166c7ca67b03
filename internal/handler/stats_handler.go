package handler

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"filedesk/internal/service"
)

type StatsHandler struct {
	statsService    *service.StatsService
	activityService *service.ActivityService
	logger          *zap.Logger
}

func NewStatsHandler(statsService *service.StatsService, activityService *service.ActivityService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		statsService:    statsService,
		activityService: activityService,
		logger:          logger,
	}
}

// Dashboard — сводка для панели администратора.
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Dashboard(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Activity — постраничный журнал действий.
func (h *StatsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	logs, err := h.activityService.List(r.Context(), skip, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
