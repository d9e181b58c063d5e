package handlers

import (
	"errors"
	"net/http"

	"timeTracker/internal/logger"
	"timeTracker/internal/service"

	"go.uber.org/zap"
)

// handleBusinessError переводит бизнес-ошибку в HTTP-ответ.
// Возвращает false, если ошибка не бизнесовая.
func handleBusinessError(w http.ResponseWriter, err error) bool {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		return false
	}

	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: Бизнес-ошибка",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode))

	responseWithJSON(w, statusCode, map[string]any{
		"error":   businessErr.Code,
		"message": businessErr.Message,
		"details": businessErr.Details,
	})
	return true
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeConflict, service.CodeInvalidState:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
