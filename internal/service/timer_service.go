package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timeTracker/internal/clock"
	"timeTracker/internal/logger"
	"timeTracker/internal/models/entry"
	rep "timeTracker/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// здесь проверяются инварианты бизнес-логики поверх хранилища

type TimerService struct {
	repo  EntryRepository
	clock clock.Clock
}

func NewTimerService(repo EntryRepository, clk clock.Clock) *TimerService {
	return &TimerService{
		repo:  repo,
		clock: clk,
	}
}

type CreateParams struct {
	Description string
	ProjectID   *uuid.UUID
	TaskID      *uuid.UUID
	StartTime   time.Time
	EndTime     *time.Time
}

// CreateEntry создаёт завершённую или запущенную запись.
// Единственность запущенного таймера обеспечивает хранилище -
// сервис только переводит его ошибку в бизнес-ошибку конфликта.
func (s *TimerService) CreateEntry(ctx context.Context, userID uuid.UUID, params CreateParams) (*entry.Entry, error) {
	if len(params.Description) > entry.MaxDescriptionLength {
		return nil, NewValidationError("description", "описание не может быть длиннее 1000 символов")
	}
	if params.StartTime.IsZero() {
		return nil, NewValidationError("start_time", "время начала должно быть задано")
	}
	if params.StartTime.After(s.clock.Now()) {
		return nil, NewValidationError("start_time", "время начала не может быть в будущем")
	}
	if params.EndTime != nil && !params.EndTime.After(params.StartTime) {
		return nil, NewValidationError("end_time", "время окончания должно быть строго позже начала")
	}

	e := &entry.Entry{
		ID:          uuid.New(),
		UserID:      userID,
		Description: params.Description,
		ProjectID:   params.ProjectID,
		TaskID:      params.TaskID,
		StartTime:   params.StartTime,
		EndTime:     params.EndTime,
	}
	e.RecalculateDuration()

	if err := s.repo.Create(ctx, e); err != nil {
		if errors.Is(err, rep.ErrRunningExists) {
			logger.Info("Service: Конфликт запущенного таймера", zap.String("user_id", userID.String()))
			return nil, NewConflict("У пользователя уже есть запущенный таймер. Остановите его перед стартом нового")
		}
		return nil, fmt.Errorf("создание записи: %w", err)
	}
	return e, nil
}

// StartTimer - переход Idle -> Running. При конфликте существующий
// таймер не перезаписывается: ошибка уходит вызывающему как есть.
func (s *TimerService) StartTimer(ctx context.Context, userID uuid.UUID, description string, projectID, taskID *uuid.UUID) (*entry.Entry, error) {
	return s.CreateEntry(ctx, userID, CreateParams{
		Description: description,
		ProjectID:   projectID,
		TaskID:      taskID,
		StartTime:   s.clock.Now(),
		EndTime:     nil,
	})
}

// StopTimer - переход Running -> Idle. Повторная остановка не no-op,
// а ошибка состояния: результат первой остановки не трогается.
func (s *TimerService) StopTimer(ctx context.Context, id, userID uuid.UUID) (*entry.Entry, error) {
	stopped, err := s.repo.Stop(ctx, id, userID, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, rep.ErrNotFound):
			logger.Info("Service: Запись не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound(id.String())
		case errors.Is(err, rep.ErrAlreadyStopped):
			return nil, NewInvalidState("Таймер уже остановлен")
		}
		return nil, fmt.Errorf("остановка таймера: %w", err)
	}
	return stopped, nil
}

// UpdateEntry меняет поля записи. Идущая запись остаётся идущей -
// обновление полей не останавливает таймер.
func (s *TimerService) UpdateEntry(ctx context.Context, id, userID uuid.UUID, options ...EntryOption) (*entry.Entry, error) {
	e, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: Запись не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound(id.String())
		}
		return nil, fmt.Errorf("получение записи: %w", err)
	}

	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}

	if len(e.Description) > entry.MaxDescriptionLength {
		return nil, NewValidationError("description", "описание не может быть длиннее 1000 символов")
	}
	if e.EndTime != nil && !e.EndTime.After(e.StartTime) {
		return nil, NewValidationError("end_time", "время окончания должно быть строго позже начала")
	}

	e.RecalculateDuration()

	if err := s.repo.Update(ctx, e); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewNotFound(id.String())
		}
		return nil, fmt.Errorf("обновление записи: %w", err)
	}
	return e, nil
}

// DeleteEntry удаляет запись. Удаление идущей записи допустимо
// и освобождает слот таймера вместе с самим удалением.
func (s *TimerService) DeleteEntry(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: Запись не найдена", zap.String("target_id", id.String()))
			return NewNotFound(id.String())
		}
		return fmt.Errorf("удаление записи: %w", err)
	}
	return nil
}

func (s *TimerService) GetEntry(ctx context.Context, id, userID uuid.UUID) (*entry.Entry, error) {
	e, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewNotFound(id.String())
		}
		return nil, fmt.Errorf("получение записи: %w", err)
	}
	return e, nil
}

// GetRunning - производный запрос к хранилищу, а не отдельно
// отслеживаемое состояние. Отсутствие таймера - не ошибка.
func (s *TimerService) GetRunning(ctx context.Context, userID uuid.UUID) (*entry.Entry, error) {
	e, err := s.repo.GetRunning(ctx, userID)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("получение запущенного таймера: %w", err)
	}
	return e, nil
}

// ListEntries - страница плюс итоги по полному отфильтрованному набору.
// Ошибки хранилища уходят наверх без подмены.
func (s *TimerService) ListEntries(ctx context.Context, userID uuid.UUID, q entry.ListQuery) ([]*entry.Entry, int64, int64, error) {
	if q.Filter.StartDate != nil && q.Filter.EndDate != nil && q.Filter.EndDate.Before(*q.Filter.StartDate) {
		return nil, 0, 0, NewValidationError("end_date", "дата окончания не может быть раньше даты начала")
	}

	q.Clamp()

	entries, totalCount, totalDuration, err := s.repo.List(ctx, userID, q)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("получение записей: %w", err)
	}
	return entries, totalCount, totalDuration, nil
}

func (s *TimerService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
