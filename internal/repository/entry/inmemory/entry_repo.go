package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"timeTracker/internal/clock"
	"timeTracker/internal/logger"
	"timeTracker/internal/models/entry"
	repo "timeTracker/internal/repository"

	"github.com/google/uuid"
)

// EntryStorage - хранилище записей в памяти. Проверка единственного
// запущенного таймера и вставка выполняются под одним write-lock,
// поэтому два конкурентных старта не могут пройти одновременно.
type EntryStorage struct {
	storage map[uuid.UUID]*entry.Entry
	running map[uuid.UUID]uuid.UUID // user_id -> id запущенной записи
	mtx     *sync.RWMutex
	ids     []uuid.UUID
	clock   clock.Clock
}

func NewEntryStorage(clk clock.Clock) *EntryStorage {
	return &EntryStorage{
		storage: make(map[uuid.UUID]*entry.Entry),
		running: make(map[uuid.UUID]uuid.UUID),
		mtx:     &sync.RWMutex{},
		ids:     []uuid.UUID{},
		clock:   clk,
	}
}

func (s *EntryStorage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Хранилище в памяти доступно")
	return nil
}

func (s *EntryStorage) Create(ctx context.Context, entryToCreate *entry.Entry) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if entryToCreate.IsRunning() {
		if _, exists := s.running[entryToCreate.UserID]; exists {
			return repo.ErrRunningExists
		}
	}

	entryToCreate.CreatedAt = s.clock.Now()
	entryToCreate.RecalculateDuration()

	stored := entryToCreate.Clone()
	s.storage[stored.ID] = stored
	s.ids = append(s.ids, stored.ID)
	if stored.IsRunning() {
		s.running[stored.UserID] = stored.ID
	}
	return nil
}

func (s *EntryStorage) Update(ctx context.Context, entryToUpdate *entry.Entry) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[entryToUpdate.ID]
	if !ok || existing.UserID != entryToUpdate.UserID {
		return repo.ErrNotFound
	}

	now := s.clock.Now()
	entryToUpdate.UpdatedAt = &now
	entryToUpdate.CreatedAt = existing.CreatedAt
	entryToUpdate.RecalculateDuration()

	stored := entryToUpdate.Clone()
	s.storage[stored.ID] = stored

	// обновление может закрыть или заново открыть запись -
	// индекс запущенного таймера поддерживается здесь же
	if stored.IsRunning() {
		s.running[stored.UserID] = stored.ID
	} else if s.running[stored.UserID] == stored.ID {
		delete(s.running, stored.UserID)
	}
	return nil
}

func (s *EntryStorage) Stop(ctx context.Context, id, userID uuid.UUID, stoppedAt time.Time) (*entry.Entry, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[id]
	if !ok || existing.UserID != userID {
		return nil, repo.ErrNotFound
	}
	if !existing.IsRunning() {
		return nil, repo.ErrAlreadyStopped
	}

	end := stoppedAt
	existing.EndTime = &end
	existing.UpdatedAt = &end
	existing.RecalculateDuration()
	delete(s.running, userID)

	return existing.Clone(), nil
}

func (s *EntryStorage) Delete(ctx context.Context, id, userID uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[id]
	if !ok || existing.UserID != userID {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	if s.running[userID] == id {
		delete(s.running, userID)
	}
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}

func (s *EntryStorage) GetByID(ctx context.Context, id, userID uuid.UUID) (*entry.Entry, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	entryToGet, ok := s.storage[id]
	if !ok || entryToGet.UserID != userID {
		return nil, repo.ErrNotFound
	}
	return entryToGet.Clone(), nil
}

func (s *EntryStorage) GetRunning(ctx context.Context, userID uuid.UUID) (*entry.Entry, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	id, ok := s.running[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return s.storage[id].Clone(), nil
}

// List возвращает страницу, полное количество и полную длительность
// по одному снимку данных: всё считается под одним RLock.
func (s *EntryStorage) List(ctx context.Context, userID uuid.UUID, q entry.ListQuery) ([]*entry.Entry, int64, int64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	now := s.clock.Now()

	filtered := []*entry.Entry{}
	var totalDuration int64
	for _, id := range s.ids {
		e := s.storage[id]
		if e.UserID != userID {
			continue
		}
		if !q.Filter.Matches(e) {
			continue
		}
		filtered = append(filtered, e)
		totalDuration += e.CurrentDuration(now)
	}

	sortEntries(filtered, q.SortBy, q.Order)

	totalCount := int64(len(filtered))

	offset := q.Offset()
	if offset > len(filtered) {
		offset = len(filtered)
	}
	end := offset + q.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	page := make([]*entry.Entry, 0, end-offset)
	for _, e := range filtered[offset:end] {
		page = append(page, e.Clone())
	}

	return page, totalCount, totalDuration, nil
}

// nil-длительность (запущенный таймер) считается больше любой конечной:
// при сортировке по длительности по убыванию идущие записи наверху.
func sortEntries(entries []*entry.Entry, sortBy entry.SortBy, order entry.SortOrder) {
	less := func(a, b *entry.Entry) bool {
		return a.StartTime.Before(b.StartTime)
	}
	if sortBy == entry.SortByDuration {
		less = func(a, b *entry.Entry) bool {
			switch {
			case a.Duration == nil && b.Duration == nil:
				return a.StartTime.Before(b.StartTime)
			case a.Duration == nil:
				return false
			case b.Duration == nil:
				return true
			default:
				return *a.Duration < *b.Duration
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if order == entry.OrderAsc {
			return less(entries[i], entries[j])
		}
		return less(entries[j], entries[i])
	})
}

// SumRange - длительность и количество записей со start_time в [from, to).
// Идущий таймер входит со значением now - start_time.
func (s *EntryStorage) SumRange(ctx context.Context, userID uuid.UUID, from, to, now time.Time) (int64, int64, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var seconds, count int64
	for _, id := range s.ids {
		e := s.storage[id]
		if e.UserID != userID {
			continue
		}
		if e.StartTime.Before(from) || !e.StartTime.Before(to) {
			continue
		}
		seconds += e.CurrentDuration(now)
		count++
	}
	return seconds, count, nil
}

// RunningOlderThan - диагностическая выборка для воркера: запущенные
// таймеры, стартовавшие раньше cutoff, по всем пользователям.
func (s *EntryStorage) RunningOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entry.Entry, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*entry.Entry{}
	for _, id := range s.running {
		e := s.storage[id]
		if e.StartTime.Before(cutoff) {
			res = append(res, e.Clone())
		}
		if len(res) >= limit {
			break
		}
	}
	return res, nil
}
