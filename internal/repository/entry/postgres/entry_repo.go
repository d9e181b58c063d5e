package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"timeTracker/internal/logger"
	"timeTracker/internal/migrations"
	"timeTracker/internal/models/entry"
	repo "timeTracker/internal/repository"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

const entryColumns = `id, user_id, description, project_id, task_id, start_time, end_time, duration, created_at, updated_at`

type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

func New(ctx context.Context, connString string) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool, connString: connString}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

// Migrate применяет встроенные миграции через golang-migrate.
func (s *Storage) Migrate() error {
	logger.Info("Repository: Применение миграций")

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Error("Repository: Ошибка чтения миграций", err)
		return fmt.Errorf("чтение миграций: %w", err)
	}

	url := strings.Replace(s.connString, "postgres://", "pgx5://", 1)
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		logger.Error("Repository: Ошибка инициализации миграций", err)
		return fmt.Errorf("инициализация миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка применения миграций", err)
		return fmt.Errorf("применение миграций: %w", err)
	}

	logger.Info("Repository: Миграции применены")
	return nil
}

// Create вставляет запись. Для записи без end_time единственность
// запущенного таймера гарантирует частичный уникальный индекс -
// проверка и вставка атомарны, отдельного предчтения нет.
func (s *Storage) Create(ctx context.Context, entryToCreate *entry.Entry) error {
	start := time.Now()

	query := `INSERT INTO time_entries
				(id, user_id, description, project_id, task_id, start_time, end_time, duration, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
				RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		entryToCreate.ID,
		entryToCreate.UserID,
		entryToCreate.Description,
		entryToCreate.ProjectID,
		entryToCreate.TaskID,
		entryToCreate.StartTime,
		entryToCreate.EndTime,
		entryToCreate.Duration,
	).Scan(&entryToCreate.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			logger.Warn("Repository: Конфликт запущенного таймера",
				zap.String("user_id", entryToCreate.UserID.String()))
			return repo.ErrRunningExists
		}
		logger.Error("Repository: Не удалось добавить запись", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление записи: %w", err)
	}

	if time.Since(start) > time.Millisecond*50 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) Update(ctx context.Context, entryToUpdate *entry.Entry) error {
	start := time.Now()

	query := `UPDATE time_entries
			SET description = $3,
				project_id = $4,
				task_id = $5,
				start_time = $6,
				end_time = $7,
				duration = $8,
				updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING updated_at`

	err := s.pool.QueryRow(ctx, query,
		entryToUpdate.ID,
		entryToUpdate.UserID,
		entryToUpdate.Description,
		entryToUpdate.ProjectID,
		entryToUpdate.TaskID,
		entryToUpdate.StartTime,
		entryToUpdate.EndTime,
		entryToUpdate.Duration,
	).Scan(&entryToUpdate.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось обновить запись", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("обновление записи: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

// Stop закрывает запущенную запись одним условным UPDATE:
// уже остановленную запись условие end_time IS NULL не пропустит.
func (s *Storage) Stop(ctx context.Context, id, userID uuid.UUID, stoppedAt time.Time) (*entry.Entry, error) {
	start := time.Now()

	query := `UPDATE time_entries
			SET end_time = $3,
				duration = EXTRACT(EPOCH FROM ($3::timestamptz - start_time))::bigint,
				updated_at = NOW()
			WHERE id = $1 AND user_id = $2 AND end_time IS NULL
			RETURNING ` + entryColumns

	stopped := &entry.Entry{}
	err := s.pool.QueryRow(ctx, query, id, userID, stoppedAt).Scan(
		&stopped.ID,
		&stopped.UserID,
		&stopped.Description,
		&stopped.ProjectID,
		&stopped.TaskID,
		&stopped.StartTime,
		&stopped.EndTime,
		&stopped.Duration,
		&stopped.CreatedAt,
		&stopped.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			checkErr := s.pool.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM time_entries WHERE id = $1 AND user_id = $2)`,
				id, userID,
			).Scan(&exists)
			if checkErr != nil {
				logger.Error("Repository: Ошибка проверки записи", checkErr)
				return nil, fmt.Errorf("проверка записи: %w", checkErr)
			}
			if exists {
				return nil, repo.ErrAlreadyStopped
			}
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось остановить таймер", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("остановка таймера: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return stopped, nil
}

func (s *Storage) Delete(ctx context.Context, id, userID uuid.UUID) error {
	start := time.Now()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM time_entries WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		logger.Error("Repository: Не удалось удалить запись", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("удаление записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id, userID uuid.UUID) (*entry.Entry, error) {
	start := time.Now()

	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE id = $1 AND user_id = $2`

	e := &entry.Entry{}
	err := s.pool.QueryRow(ctx, query, id, userID).Scan(
		&e.ID,
		&e.UserID,
		&e.Description,
		&e.ProjectID,
		&e.TaskID,
		&e.StartTime,
		&e.EndTime,
		&e.Duration,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить запись", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение записи: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return e, nil
}

func (s *Storage) GetRunning(ctx context.Context, userID uuid.UUID) (*entry.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE user_id = $1 AND end_time IS NULL`

	e := &entry.Entry{}
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&e.ID,
		&e.UserID,
		&e.Description,
		&e.ProjectID,
		&e.TaskID,
		&e.StartTime,
		&e.EndTime,
		&e.Duration,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить запущенный таймер", err)
		return nil, fmt.Errorf("получение запущенного таймера: %w", err)
	}
	return e, nil
}

// List считает страницу, полное количество и полную длительность
// в одной repeatable-read транзакции: страница и итоги видят один
// и тот же снимок данных.
func (s *Storage) List(ctx context.Context, userID uuid.UUID, q entry.ListQuery) ([]*entry.Entry, int64, int64, error) {
	start := time.Now()

	where, args := buildWhere(userID, q.Filter)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		logger.Error("Repository: Не удалось открыть транзакцию", err)
		return nil, 0, 0, fmt.Errorf("открытие транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM time_entries WHERE ` + where
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		logger.Error("Repository: Ошибка подсчёта записей", err)
		return nil, 0, 0, fmt.Errorf("подсчёт записей: %w", err)
	}

	// идущий таймер входит в итог как transaction_timestamp() - start_time
	var totalDuration int64
	durationQuery := `SELECT COALESCE(SUM(
				COALESCE(duration, EXTRACT(EPOCH FROM (transaction_timestamp() - start_time))::bigint)
			), 0) FROM time_entries WHERE ` + where
	if err := tx.QueryRow(ctx, durationQuery, args...).Scan(&totalDuration); err != nil {
		logger.Error("Repository: Ошибка подсчёта длительности", err)
		return nil, 0, 0, fmt.Errorf("подсчёт длительности: %w", err)
	}

	limitParam := len(args) + 1
	offsetParam := len(args) + 2
	entriesQuery := fmt.Sprintf(
		`SELECT %s FROM time_entries WHERE %s %s LIMIT $%d OFFSET $%d`,
		entryColumns, where, sortClause(q.SortBy, q.Order), limitParam, offsetParam,
	)
	pageArgs := append(args, q.PageSize, q.Offset())

	rows, err := tx.Query(ctx, entriesQuery, pageArgs...)
	if err != nil {
		logger.Error("Repository: Не удалось получить записи", err, zap.Duration("ms", time.Since(start)))
		return nil, 0, 0, fmt.Errorf("получение записей: %w", err)
	}
	defer rows.Close()

	entries := []*entry.Entry{}
	for rows.Next() {
		e := &entry.Entry{}
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Description,
			&e.ProjectID,
			&e.TaskID,
			&e.StartTime,
			&e.EndTime,
			&e.Duration,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			logger.Error("Repository: Ошибка сканирования записи", err)
			return nil, 0, 0, fmt.Errorf("сканирование записи: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, 0, 0, fmt.Errorf("итерация по строкам: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Repository: Ошибка завершения транзакции", err)
		return nil, 0, 0, fmt.Errorf("завершение транзакции: %w", err)
	}

	if time.Since(start) > time.Millisecond*50+time.Millisecond*10*time.Duration(q.PageSize) {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return entries, totalCount, totalDuration, nil
}

func buildWhere(userID uuid.UUID, f entry.Filter) (string, []any) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}

	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		conditions = append(conditions, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		conditions = append(conditions, fmt.Sprintf("start_time <= $%d", len(args)))
	}
	if f.ProjectID != nil {
		args = append(args, *f.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if f.TaskID != nil {
		args = append(args, *f.TaskID)
		conditions = append(conditions, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if f.IsRunning != nil {
		if *f.IsRunning {
			conditions = append(conditions, "end_time IS NULL")
		} else {
			conditions = append(conditions, "end_time IS NOT NULL")
		}
	}

	return strings.Join(conditions, " AND "), args
}

// NULLS задаются явно: nil-длительность (идущий таймер) всегда
// "больше" конечной, а не как решит движок по умолчанию.
func sortClause(sortBy entry.SortBy, order entry.SortOrder) string {
	switch {
	case sortBy == entry.SortByDuration && order == entry.OrderAsc:
		return "ORDER BY duration ASC NULLS LAST, start_time ASC"
	case sortBy == entry.SortByDuration:
		return "ORDER BY duration DESC NULLS FIRST, start_time DESC"
	case order == entry.OrderAsc:
		return "ORDER BY start_time ASC"
	default:
		return "ORDER BY start_time DESC"
	}
}

// SumRange - итог и количество записей со start_time в [from, to).
func (s *Storage) SumRange(ctx context.Context, userID uuid.UUID, from, to, now time.Time) (int64, int64, error) {
	start := time.Now()

	query := `SELECT
				COALESCE(SUM(COALESCE(duration, EXTRACT(EPOCH FROM ($4::timestamptz - start_time))::bigint)), 0),
				COUNT(*)
			FROM time_entries
			WHERE user_id = $1 AND start_time >= $2 AND start_time < $3`

	var seconds, count int64
	err := s.pool.QueryRow(ctx, query, userID, from, to, now).Scan(&seconds, &count)
	if err != nil {
		logger.Error("Repository: Ошибка агрегации за период", err, zap.Duration("ms", time.Since(start)))
		return 0, 0, fmt.Errorf("агрегация за период: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return seconds, count, nil
}

// RunningOlderThan - диагностическая выборка для воркера,
// без привязки к пользователю и без мутаций.
func (s *Storage) RunningOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entry.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries
			WHERE end_time IS NULL AND start_time < $1
			LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		logger.Error("Repository: Не удалось получить долгие таймеры", err)
		return nil, fmt.Errorf("получение долгих таймеров: %w", err)
	}
	defer rows.Close()

	entries := []*entry.Entry{}
	for rows.Next() {
		e := &entry.Entry{}
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Description,
			&e.ProjectID,
			&e.TaskID,
			&e.StartTime,
			&e.EndTime,
			&e.Duration,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			logger.Error("Repository: Ошибка сканирования записи", err)
			return nil, fmt.Errorf("сканирование записи: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	return entries, nil
}
