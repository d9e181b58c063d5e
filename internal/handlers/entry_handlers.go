package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"timeTracker/internal/handlers/dto"
	"timeTracker/internal/logger"
	"timeTracker/internal/middleware"
	"timeTracker/internal/models/entry"
	"timeTracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EntryHandler struct {
	EntryService EntryService
}

func NewEntryHandler(entryService EntryService) EntryHandler {
	return EntryHandler{
		EntryService: entryService,
	}
}

// POST /entries
func (h *EntryHandler) PostEntry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())

	created, err := h.EntryService.CreateEntry(r.Context(), userID, service.CreateParams{
		Description: request.Description,
		ProjectID:   request.ProjectID,
		TaskID:      request.TaskID,
		StartTime:   request.StartTime,
		EndTime:     request.EndTime,
	})
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "create_entry"))
		responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	logger.Info("HTTP_OUT: Запись создана",
		zap.String("entry_id", created.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, dto.FromEntry(created))
}

// POST /entries/start
func (h *EntryHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.StartTimerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !checkContentType(r, "application/json") {
			logger.Warn("HTTP: Неверный тип контента",
				zap.String("received", r.Header.Get("Content-Type")),
				zap.String("client_ip", r.RemoteAddr))
			responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			logger.Warn("HTTP: ошибка чтения JSON",
				zap.Error(err),
				zap.String("client_ip", r.RemoteAddr))
			responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
			return
		}
	}

	userID := middleware.GetUserID(r.Context())

	started, err := h.EntryService.StartTimer(r.Context(), userID, request.Description, request.ProjectID, request.TaskID)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "start_timer"))
		responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	logger.Info("HTTP_OUT: Таймер запущен",
		zap.String("entry_id", started.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, dto.FromEntry(started))
}

// POST /entries/{id}/stop
func (h *EntryHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())

	stopped, err := h.EntryService.StopTimer(r.Context(), id, userID)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "stop_timer"))
		responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	logger.Info("HTTP_OUT: Таймер остановлен",
		zap.String("entry_id", stopped.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromEntry(stopped))
}

// GET /entries/current
func (h *EntryHandler) GetRunning(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID := middleware.GetUserID(r.Context())

	running, err := h.EntryService.GetRunning(r.Context(), userID)
	if err != nil {
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "get_running"))
		responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	if running == nil {
		// отсутствие запущенного таймера - нормальное состояние
		w.WriteHeader(http.StatusNoContent)
		return
	}

	responseWithJSON(w, http.StatusOK, dto.FromEntry(running))
}

// GET /entries/{id}
func (h *EntryHandler) GetEntryByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())

	e, err := h.EntryService.GetEntry(r.Context(), id, userID)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "get_entry"))
		responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	logger.Info("HTTP_OUT: Запись получена",
		zap.String("entry_id", e.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromEntry(e))
}

// PUT /entries/{id}
func (h *EntryHandler) UpdateEntryByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.UpdateEntryRequest
	decoder := json.NewDecoder(r.Body)
	defer r.Body.Close()

	if err := decoder.Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверно переданы параметры обновления: "+err.Error())
		return
	}

	// опции собираются только для переданных полей
	options := []service.EntryOption{}
	if request.Description != nil {
		options = append(options, service.WithDescription(*request.Description))
	}
	if request.ProjectID != nil {
		options = append(options, service.WithProject(request.ProjectID))
	}
	if request.TaskID != nil {
		options = append(options, service.WithTask(request.TaskID))
	}
	if request.StartTime != nil {
		options = append(options, service.WithStartTime(*request.StartTime))
	}
	if request.EndTime != nil {
		options = append(options, service.WithEndTime(*request.EndTime))
	}

	userID := middleware.GetUserID(r.Context())

	updated, err := h.EntryService.UpdateEntry(r.Context(), id, userID, options...)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "update_entry"))
		responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	logger.Info("HTTP_OUT: Запись обновлена",
		zap.String("entry_id", updated.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromEntry(updated))
}

// DELETE /entries/{id}
func (h *EntryHandler) DeleteEntryByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())

	if err := h.EntryService.DeleteEntry(r.Context(), id, userID); err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "delete_entry"))
		responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	logger.Info("HTTP_OUT: Запись удалена",
		zap.String("entry_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

// GET /entries
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	q, err := parseListQuery(r)
	if err != nil {
		logger.Warn("HTTP: Ошибка параметров запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())

	entries, totalCount, totalDuration, err := h.EntryService.ListEntries(r.Context(), userID, q)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "list_entries"))
		responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	q.Clamp()
	logger.Info("HTTP_OUT: Записи получены",
		zap.Int64("total_count", totalCount),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.ListResponse{
		Entries:       dto.FromEntryList(entries),
		TotalCount:    totalCount,
		TotalDuration: totalDuration,
		Page:          q.Page,
		PageSize:      q.PageSize,
	})
}

// GET /entries/stats
func (h *EntryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID := middleware.GetUserID(r.Context())

	stats, err := h.EntryService.Stats(r.Context(), userID)
	if err != nil {
		logger.Error("HTTP: Ошибка Service", err, zap.String("operation", "stats"))
		responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		return
	}

	responseWithJSON(w, http.StatusOK, stats)
}

// GET /health
func (h *EntryHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := h.EntryService.HealthCheck(r.Context()); err != nil {
		responseWithJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy"})
		return
	}
	responseWithJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Warn("HTTP: Не удалось получить id",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось получить id: "+err.Error())
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("error", "nil id"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "id не может быть пустым")
		return uuid.Nil, false
	}
	return id, true
}

func parseListQuery(r *http.Request) (entry.ListQuery, error) {
	q := entry.ListQuery{}
	values := r.URL.Query()

	if v := values.Get("start_date"); v != "" {
		t, err := parseDateParam(v, false)
		if err != nil {
			return q, err
		}
		q.Filter.StartDate = &t
	}
	if v := values.Get("end_date"); v != "" {
		t, err := parseDateParam(v, true)
		if err != nil {
			return q, err
		}
		q.Filter.EndDate = &t
	}
	if v := values.Get("project_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return q, errParam("project_id")
		}
		q.Filter.ProjectID = &id
	}
	if v := values.Get("task_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return q, errParam("task_id")
		}
		q.Filter.TaskID = &id
	}
	if v := values.Get("is_running"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, errParam("is_running")
		}
		q.Filter.IsRunning = &b
	}
	if v := values.Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return q, errParam("page")
		}
		q.Page = p
	}
	if v := values.Get("page_size"); v != "" {
		ps, err := strconv.Atoi(v)
		if err != nil {
			return q, errParam("page_size")
		}
		q.PageSize = ps
	}

	q.SortBy = entry.SortBy(values.Get("sort_by"))
	q.Order = entry.SortOrder(values.Get("order"))

	return q, nil
}

// дата принимается как RFC 3339 или как YYYY-MM-DD;
// для end_date дата без времени означает конец дня включительно
func parseDateParam(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, errParam("date")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

type paramError string

func (p paramError) Error() string {
	return "неверное значение параметра " + string(p)
}

func errParam(name string) error {
	return paramError(name)
}
