package inmemory_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"timeTracker/internal/clock"
	"timeTracker/internal/logger"
	"timeTracker/internal/models/entry"
	"timeTracker/internal/repository"
	"timeTracker/internal/repository/entry/inmemory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	os.Exit(m.Run())
}

func newEntry(userID uuid.UUID, start time.Time, end *time.Time) *entry.Entry {
	e := &entry.Entry{
		ID:          uuid.New(),
		UserID:      userID,
		Description: "Test Entry",
		StartTime:   start,
		EndTime:     end,
	}
	e.RecalculateDuration()
	return e
}

// TestEntryStorage_New тестирует создание хранилища
func TestEntryStorage_New(t *testing.T) {
	storage := inmemory.NewEntryStorage(clock.Real())
	assert.NotNil(t, storage)
}

// TestEntryStorage_HealthCheck тестирует проверку здоровья
func TestEntryStorage_HealthCheck(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())

	err := storage.HealthCheck(ctx)
	assert.NoError(t, err)
}

// TestEntryStorage_Create тестирует создание записи
func TestEntryStorage_Create(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()

	start := time.Now().Add(-2 * time.Hour)
	end := start.Add(time.Hour)
	entryToCreate := newEntry(userID, start, &end)

	err := storage.Create(ctx, entryToCreate)
	require.NoError(t, err)

	// Проверяем, что поля заполнены
	assert.False(t, entryToCreate.CreatedAt.IsZero())

	// Проверяем, что запись сохранена
	retrieved, err := storage.GetByID(ctx, entryToCreate.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, "Test Entry", retrieved.Description)
	require.NotNil(t, retrieved.Duration)
	assert.Equal(t, int64(3600), *retrieved.Duration)
}

// TestEntryStorage_Create_RunningConflict тестирует запрет второго таймера
func TestEntryStorage_Create_RunningConflict(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()

	first := newEntry(userID, time.Now().Add(-time.Hour), nil)
	err := storage.Create(ctx, first)
	require.NoError(t, err)

	// Второй запущенный таймер того же пользователя отклоняется
	second := newEntry(userID, time.Now(), nil)
	err = storage.Create(ctx, second)
	assert.Equal(t, repository.ErrRunningExists, err)

	// Завершённую запись создать можно
	start := time.Now().Add(-3 * time.Hour)
	end := start.Add(time.Hour)
	finished := newEntry(userID, start, &end)
	err = storage.Create(ctx, finished)
	assert.NoError(t, err)

	// У другого пользователя свой слот
	other := newEntry(uuid.New(), time.Now(), nil)
	err = storage.Create(ctx, other)
	assert.NoError(t, err)
}

// TestEntryStorage_Create_ConcurrentStarts тестирует конкурентный старт:
// из N одновременных попыток должна пройти ровно одна
func TestEntryStorage_Create_ConcurrentStarts(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()
	goroutines := 50

	var wg sync.WaitGroup
	results := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- storage.Create(ctx, newEntry(userID, time.Now(), nil))
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, repository.ErrRunningExists, err)
		}
	}
	assert.Equal(t, 1, succeeded)
}

// TestEntryStorage_Stop тестирует остановку таймера
func TestEntryStorage_Stop(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()

	start := time.Now().Add(-time.Hour)
	running := newEntry(userID, start, nil)
	err := storage.Create(ctx, running)
	require.NoError(t, err)

	// 1 час 1 минута 1 секунда после старта
	stoppedAt := start.Add(3661 * time.Second)
	stopped, err := storage.Stop(ctx, running.ID, userID, stoppedAt)
	require.NoError(t, err)
	require.NotNil(t, stopped.EndTime)
	require.NotNil(t, stopped.Duration)
	assert.Equal(t, int64(3661), *stopped.Duration)

	// Повторная остановка
	_, err = storage.Stop(ctx, running.ID, userID, stoppedAt.Add(time.Minute))
	assert.Equal(t, repository.ErrAlreadyStopped, err)

	// Слот освободился, новый таймер можно запустить
	err = storage.Create(ctx, newEntry(userID, time.Now(), nil))
	assert.NoError(t, err)
}

// TestEntryStorage_Stop_NotFound тестирует остановку чужой и несуществующей записи
func TestEntryStorage_Stop_NotFound(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()

	running := newEntry(userID, time.Now().Add(-time.Hour), nil)
	err := storage.Create(ctx, running)
	require.NoError(t, err)

	// Несуществующая запись
	_, err = storage.Stop(ctx, uuid.New(), userID, time.Now())
	assert.Equal(t, repository.ErrNotFound, err)

	// Чужая запись выглядит как несуществующая
	_, err = storage.Stop(ctx, running.ID, uuid.New(), time.Now())
	assert.Equal(t, repository.ErrNotFound, err)
}

// TestEntryStorage_Update тестирует обновление записи
func TestEntryStorage_Update(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()

	start := time.Now().Add(-2 * time.Hour)
	running := newEntry(userID, start, nil)
	err := storage.Create(ctx, running)
	require.NoError(t, err)

	// Правка описания на ходу не останавливает таймер
	running.Description = "Updated Description"
	err = storage.Update(ctx, running)
	require.NoError(t, err)

	retrieved, err := storage.GetByID(ctx, running.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, "Updated Description", retrieved.Description)
	assert.Nil(t, retrieved.EndTime)
	assert.NotNil(t, retrieved.UpdatedAt)

	// Закрытие записи через Update освобождает слот таймера
	end := start.Add(time.Hour)
	running.EndTime = &end
	err = storage.Update(ctx, running)
	require.NoError(t, err)

	_, err = storage.GetRunning(ctx, userID)
	assert.Equal(t, repository.ErrNotFound, err)

	retrieved, err = storage.GetByID(ctx, running.ID, userID)
	require.NoError(t, err)
	require.NotNil(t, retrieved.Duration)
	assert.Equal(t, int64(3600), *retrieved.Duration)
}

// TestEntryStorage_Update_NotFound тестирует обновление чужой записи
func TestEntryStorage_Update_NotFound(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()

	start := time.Now().Add(-2 * time.Hour)
	end := start.Add(time.Hour)
	owned := newEntry(userID, start, &end)
	err := storage.Create(ctx, owned)
	require.NoError(t, err)

	stranger := owned.Clone()
	stranger.UserID = uuid.New()
	err = storage.Update(ctx, stranger)
	assert.Equal(t, repository.ErrNotFound, err)
}

// TestEntryStorage_Delete тестирует удаление записи
func TestEntryStorage_Delete(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()

	running := newEntry(userID, time.Now().Add(-time.Hour), nil)
	err := storage.Create(ctx, running)
	require.NoError(t, err)

	// Чужой пользователь удалить не может
	err = storage.Delete(ctx, running.ID, uuid.New())
	assert.Equal(t, repository.ErrNotFound, err)

	// Удаление идущего таймера освобождает слот
	err = storage.Delete(ctx, running.ID, userID)
	require.NoError(t, err)

	_, err = storage.GetByID(ctx, running.ID, userID)
	assert.Equal(t, repository.ErrNotFound, err)

	err = storage.Create(ctx, newEntry(userID, time.Now(), nil))
	assert.NoError(t, err)
}

// TestEntryStorage_GetRunning тестирует получение текущего таймера
func TestEntryStorage_GetRunning(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()

	_, err := storage.GetRunning(ctx, userID)
	assert.Equal(t, repository.ErrNotFound, err)

	running := newEntry(userID, time.Now().Add(-time.Minute), nil)
	err = storage.Create(ctx, running)
	require.NoError(t, err)

	retrieved, err := storage.GetRunning(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, running.ID, retrieved.ID)

	// Чужой таймер не виден
	_, err = storage.GetRunning(ctx, uuid.New())
	assert.Equal(t, repository.ErrNotFound, err)
}

// TestEntryStorage_List тестирует листинг с фильтрами и итогами
func TestEntryStorage_List(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()
	projectID := uuid.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// Три завершённые записи по часу с разными днями
	for i := 0; i < 3; i++ {
		start := base.AddDate(0, 0, i)
		end := start.Add(time.Hour)
		e := newEntry(userID, start, &end)
		if i == 0 {
			e.ProjectID = &projectID
		}
		require.NoError(t, storage.Create(ctx, e))
	}

	// Запись другого пользователя не должна попадать в выдачу
	otherStart := base
	otherEnd := otherStart.Add(10 * time.Hour)
	require.NoError(t, storage.Create(ctx, newEntry(uuid.New(), otherStart, &otherEnd)))

	q := entry.ListQuery{Page: 1, PageSize: 10}
	q.Clamp()

	entries, totalCount, totalDuration, err := storage.List(ctx, userID, q)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, int64(3), totalCount)
	assert.Equal(t, int64(3*3600), totalDuration)

	// По умолчанию сортировка по start_time по убыванию
	assert.True(t, entries[0].StartTime.After(entries[1].StartTime))

	// Фильтр по проекту
	q.Filter.ProjectID = &projectID
	entries, totalCount, _, err = storage.List(ctx, userID, q)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(1), totalCount)

	// Фильтр по диапазону дат включает обе границы
	q.Filter = entry.Filter{}
	from := base
	to := base.AddDate(0, 0, 1)
	q.Filter.StartDate = &from
	q.Filter.EndDate = &to
	_, totalCount, _, err = storage.List(ctx, userID, q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totalCount)
}

// TestEntryStorage_List_RunningTotals тестирует вклад идущего таймера в итоги:
// "сейчас" берётся из переданных часов, поэтому итог детерминирован
func TestEntryStorage_List_RunningTotals(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.Fake(now)
	storage := inmemory.NewEntryStorage(clk)
	userID := uuid.New()

	start := now.Add(-3 * time.Hour)
	end := start.Add(time.Hour)
	require.NoError(t, storage.Create(ctx, newEntry(userID, start, &end)))
	require.NoError(t, storage.Create(ctx, newEntry(userID, now.Add(-30*time.Minute), nil)))

	q := entry.ListQuery{Page: 1, PageSize: 10}
	q.Clamp()

	_, totalCount, totalDuration, err := storage.List(ctx, userID, q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totalCount)
	// 1 час завершённой плюс ровно 30 минут идущей
	assert.Equal(t, int64(3600+1800), totalDuration)

	// Сдвиг часов растит вклад идущего таймера
	clk.Advance(10 * time.Minute)
	_, _, totalDuration, err = storage.List(ctx, userID, q)
	require.NoError(t, err)
	assert.Equal(t, int64(3600+2400), totalDuration)

	// Фильтр только по идущим
	isRunning := true
	q.Filter.IsRunning = &isRunning
	entries, totalCount, _, err := storage.List(ctx, userID, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totalCount)
	assert.Nil(t, entries[0].EndTime)
}

// TestEntryStorage_List_DurationSort тестирует сортировку по длительности:
// идущая запись (nil) считается больше любой конечной
func TestEntryStorage_List_DurationSort(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()
	base := time.Now().Add(-10 * time.Hour)

	short := newEntry(userID, base, ptrTime(base.Add(10*time.Minute)))
	long := newEntry(userID, base.Add(time.Hour), ptrTime(base.Add(3*time.Hour)))
	running := newEntry(userID, base.Add(9*time.Hour), nil)
	require.NoError(t, storage.Create(ctx, short))
	require.NoError(t, storage.Create(ctx, long))
	require.NoError(t, storage.Create(ctx, running))

	q := entry.ListQuery{Page: 1, PageSize: 10, SortBy: entry.SortByDuration, Order: entry.OrderDesc}
	q.Clamp()

	entries, _, _, err := storage.List(ctx, userID, q)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, running.ID, entries[0].ID)
	assert.Equal(t, long.ID, entries[1].ID)
	assert.Equal(t, short.ID, entries[2].ID)

	// По возрастанию идущая запись уходит в конец
	q.Order = entry.OrderAsc
	entries, _, _, err = storage.List(ctx, userID, q)
	require.NoError(t, err)
	assert.Equal(t, short.ID, entries[0].ID)
	assert.Equal(t, running.ID, entries[2].ID)
}

// TestEntryStorage_List_Pagination тестирует пагинацию:
// итоги считаются по всей выборке, а не по странице
func TestEntryStorage_List_Pagination(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		end := start.Add(30 * time.Minute)
		require.NoError(t, storage.Create(ctx, newEntry(userID, start, &end)))
	}

	q := entry.ListQuery{Page: 2, PageSize: 2}
	q.Clamp()

	entries, totalCount, totalDuration, err := storage.List(ctx, userID, q)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(5), totalCount)
	assert.Equal(t, int64(5*1800), totalDuration)

	// Страница за пределами данных
	q = entry.ListQuery{Page: 100, PageSize: 2}
	q.Clamp()
	entries, totalCount, _, err = storage.List(ctx, userID, q)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, int64(5), totalCount)
}

// TestEntryStorage_SumRange тестирует агрегацию по окну [from, to)
func TestEntryStorage_SumRange(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()
	from := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	// Внутри окна
	inStart := from.Add(9 * time.Hour)
	inEnd := inStart.Add(2 * time.Hour)
	require.NoError(t, storage.Create(ctx, newEntry(userID, inStart, &inEnd)))

	// Ровно на нижней границе - входит
	edgeEnd := from.Add(time.Hour)
	require.NoError(t, storage.Create(ctx, newEntry(userID, from, &edgeEnd)))

	// Ровно на верхней границе - не входит
	afterEnd := to.Add(time.Hour)
	require.NoError(t, storage.Create(ctx, newEntry(userID, to, &afterEnd)))

	// До окна, но пересекает его - принадлежность по start_time
	beforeStart := from.Add(-2 * time.Hour)
	beforeEnd := from.Add(3 * time.Hour)
	require.NoError(t, storage.Create(ctx, newEntry(userID, beforeStart, &beforeEnd)))

	seconds, count, err := storage.SumRange(ctx, userID, from, to, to)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(3*3600), seconds)
}

// TestEntryStorage_SumRange_Running тестирует вклад идущего таймера
func TestEntryStorage_SumRange_Running(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	userID := uuid.New()
	from := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	now := from.Add(10 * time.Hour)

	require.NoError(t, storage.Create(ctx, newEntry(userID, from.Add(8*time.Hour), nil)))

	seconds, count, err := storage.SumRange(ctx, userID, from, to, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(2*3600), seconds)
}

// TestEntryStorage_RunningOlderThan тестирует диагностическую выборку
func TestEntryStorage_RunningOlderThan(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())

	stale := newEntry(uuid.New(), time.Now().Add(-24*time.Hour), nil)
	fresh := newEntry(uuid.New(), time.Now().Add(-time.Minute), nil)
	require.NoError(t, storage.Create(ctx, stale))
	require.NoError(t, storage.Create(ctx, fresh))

	found, err := storage.RunningOlderThan(ctx, time.Now().Add(-12*time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)
}

// TestEntryStorage_ConcurrentAccess тестирует конкурентный доступ
func TestEntryStorage_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewEntryStorage(clock.Real())
	entriesPerWorker := 10
	goroutines := 10

	var wg sync.WaitGroup
	errs := make(chan error, entriesPerWorker*goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			userID := uuid.New()
			for j := 0; j < entriesPerWorker; j++ {
				start := time.Now().Add(time.Duration(-j-1) * time.Hour)
				end := start.Add(30 * time.Minute)
				e := newEntry(userID, start, &end)
				e.Description = fmt.Sprintf("Entry %d-%d", workerID, j)
				if err := storage.Create(ctx, e); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
