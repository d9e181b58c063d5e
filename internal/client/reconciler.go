package client

import (
	"context"
	"sync"
	"time"

	"timeTracker/internal/clock"
	"timeTracker/internal/handlers/dto"
	"timeTracker/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// API - срез клиента, нужный согласователю. Выделен в интерфейс,
// чтобы в тестах подставлять заглушку вместо живого HTTP-клиента.
type API interface {
	StartTimer(ctx context.Context, description string, projectID, taskID *uuid.UUID) (*dto.EntryResponse, error)
	StopTimer(ctx context.Context, id uuid.UUID) (*dto.EntryResponse, error)
	UpdateEntry(ctx context.Context, id uuid.UUID, patch dto.UpdateEntryRequest) (*dto.EntryResponse, error)
	DeleteEntry(ctx context.Context, id uuid.UUID) error
	GetRunning(ctx context.Context) (*dto.EntryResponse, error)
}

// Reconciler держит локальное представление текущего таймера и раз в
// секунду пересчитывает его длительность от start_time. Длительность
// никогда не инкрементируется: единственный источник истины - часы и
// start_time сервера, поэтому после сна машины или троттлинга вкладки
// значение сразу становится корректным.
type Reconciler struct {
	api   API
	clock clock.Clock

	mtx       sync.Mutex
	current   *dto.EntryResponse
	elapsed   int64
	suspended bool
}

func NewReconciler(api API, clk clock.Clock) *Reconciler {
	return &Reconciler{
		api:   api,
		clock: clk,
	}
}

// Load подтягивает состояние с сервера. Вызывается при старте клиента:
// даже если локально таймера нет, на сервере он может идти.
func (r *Reconciler) Load(ctx context.Context) error {
	running, err := r.api.GetRunning(ctx)
	if err != nil {
		return err
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.setCurrentLocked(running)
	return nil
}

// Run крутит секундный тик до отмены контекста.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.tick()
		}
	}
}

func (r *Reconciler) tick() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.suspended {
		return
	}
	r.recomputeLocked()
}

// Suspend замораживает пересчёт, состояние не трогает.
func (r *Reconciler) Suspend() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.suspended = true
}

// Resume немедленно пересчитывает длительность и сверяется с сервером:
// за время простоя таймер могли остановить с другого устройства.
func (r *Reconciler) Resume(ctx context.Context) error {
	r.mtx.Lock()
	r.suspended = false
	r.recomputeLocked()
	r.mtx.Unlock()

	running, err := r.api.GetRunning(ctx)
	if err != nil {
		return err
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.setCurrentLocked(running)
	return nil
}

// Start запускает таймер. При конфликте ошибка отдаётся вызывающему
// как есть: повторять старт вслепую нельзя, сначала нужен Load.
func (r *Reconciler) Start(ctx context.Context, description string, projectID, taskID *uuid.UUID) (*dto.EntryResponse, error) {
	started, err := r.api.StartTimer(ctx, description, projectID, taskID)
	if err != nil {
		r.resync(ctx)
		return nil, err
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.setCurrentLocked(started)
	return started, nil
}

// Stop оптимистично убирает таймер из локального состояния до ответа
// сервера. Откат при ошибке не локальный: состояние перечитывается
// целиком, потому что локальная копия могла устареть.
func (r *Reconciler) Stop(ctx context.Context) (*dto.EntryResponse, error) {
	r.mtx.Lock()
	current := r.current
	r.setCurrentLocked(nil)
	r.mtx.Unlock()

	if current == nil {
		return nil, ErrInvalidState
	}

	stopped, err := r.api.StopTimer(ctx, current.ID)
	if err != nil {
		r.resync(ctx)
		return nil, err
	}
	return stopped, nil
}

// Update правит текущий таймер на месте, без остановки.
func (r *Reconciler) Update(ctx context.Context, patch dto.UpdateEntryRequest) (*dto.EntryResponse, error) {
	r.mtx.Lock()
	current := r.current
	r.mtx.Unlock()

	if current == nil {
		return nil, ErrInvalidState
	}

	updated, err := r.api.UpdateEntry(ctx, current.ID, patch)
	if err != nil {
		r.resync(ctx)
		return nil, err
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.setCurrentLocked(updated)
	return updated, nil
}

// Discard удаляет идущий таймер, не сохраняя запись.
func (r *Reconciler) Discard(ctx context.Context) error {
	r.mtx.Lock()
	current := r.current
	r.setCurrentLocked(nil)
	r.mtx.Unlock()

	if current == nil {
		return ErrInvalidState
	}

	if err := r.api.DeleteEntry(ctx, current.ID); err != nil {
		r.resync(ctx)
		return err
	}
	return nil
}

// Current возвращает снимок таймера и набежавшие секунды.
func (r *Reconciler) Current() (*dto.EntryResponse, int64) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.current == nil {
		return nil, 0
	}
	snapshot := *r.current
	return &snapshot, r.elapsed
}

// resync перечитывает авторитетное состояние после неудачной мутации.
func (r *Reconciler) resync(ctx context.Context) {
	running, err := r.api.GetRunning(ctx)
	if err != nil {
		logger.Warn("Client: Не удалось сверить состояние с сервером", zap.Error(err))
		return
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.setCurrentLocked(running)
}

func (r *Reconciler) setCurrentLocked(e *dto.EntryResponse) {
	r.current = e
	r.recomputeLocked()
}

func (r *Reconciler) recomputeLocked() {
	if r.current == nil {
		r.elapsed = 0
		return
	}
	elapsed := int64(r.clock.Now().Sub(r.current.StartTime) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	r.elapsed = elapsed
}
