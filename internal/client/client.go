package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"timeTracker/internal/handlers/dto"
	"timeTracker/internal/models/entry"

	"github.com/google/uuid"
)

// Client - типизированный HTTP-клиент транспортного контракта.
// Повторы запросов клиент не делает: старт вслепую повторять нельзя,
// вызывающий обязан сверяться с GetRunning (см. Reconciler).
type Client struct {
	baseURL    string
	userID     uuid.UUID
	httpClient *http.Client
}

func New(baseURL string, userID uuid.UUID) *Client {
	return &Client{
		baseURL: baseURL,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("кодирование запроса: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("X-User-ID", c.userID.String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("выполнение запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, c.asError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("разбор ответа: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) asError(resp *http.Response) error {
	var er errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&er)

	switch resp.StatusCode {
	case http.StatusConflict:
		if er.Error == "INVALID_STATE" {
			return fmt.Errorf("%w: %s", ErrInvalidState, er.Message)
		}
		return fmt.Errorf("%w: %s", ErrConflict, er.Message)
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrValidation, er.Message)
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("сервер вернул статус %d", resp.StatusCode)
	}
}

func (c *Client) StartTimer(ctx context.Context, description string, projectID, taskID *uuid.UUID) (*dto.EntryResponse, error) {
	var e dto.EntryResponse
	_, err := c.do(ctx, http.MethodPost, "/entries/start", dto.StartTimerRequest{
		Description: description,
		ProjectID:   projectID,
		TaskID:      taskID,
	}, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) StopTimer(ctx context.Context, id uuid.UUID) (*dto.EntryResponse, error) {
	var e dto.EntryResponse
	_, err := c.do(ctx, http.MethodPost, "/entries/"+id.String()+"/stop", nil, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) CreateEntry(ctx context.Context, request dto.CreateEntryRequest) (*dto.EntryResponse, error) {
	var e dto.EntryResponse
	_, err := c.do(ctx, http.MethodPost, "/entries", request, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) UpdateEntry(ctx context.Context, id uuid.UUID, patch dto.UpdateEntryRequest) (*dto.EntryResponse, error) {
	var e dto.EntryResponse
	_, err := c.do(ctx, http.MethodPut, "/entries/"+id.String(), patch, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	_, err := c.do(ctx, http.MethodDelete, "/entries/"+id.String(), nil, nil)
	return err
}

func (c *Client) GetEntry(ctx context.Context, id uuid.UUID) (*dto.EntryResponse, error) {
	var e dto.EntryResponse
	_, err := c.do(ctx, http.MethodGet, "/entries/"+id.String(), nil, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetRunning возвращает (nil, nil), если таймер не запущен.
func (c *Client) GetRunning(ctx context.Context) (*dto.EntryResponse, error) {
	var e dto.EntryResponse
	status, err := c.do(ctx, http.MethodGet, "/entries/current", nil, &e)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &e, nil
}

func (c *Client) ListEntries(ctx context.Context, q entry.ListQuery) (*dto.ListResponse, error) {
	values := url.Values{}
	if q.Filter.StartDate != nil {
		values.Set("start_date", q.Filter.StartDate.Format(time.RFC3339))
	}
	if q.Filter.EndDate != nil {
		values.Set("end_date", q.Filter.EndDate.Format(time.RFC3339))
	}
	if q.Filter.ProjectID != nil {
		values.Set("project_id", q.Filter.ProjectID.String())
	}
	if q.Filter.TaskID != nil {
		values.Set("task_id", q.Filter.TaskID.String())
	}
	if q.Filter.IsRunning != nil {
		values.Set("is_running", strconv.FormatBool(*q.Filter.IsRunning))
	}
	if q.SortBy != "" {
		values.Set("sort_by", string(q.SortBy))
	}
	if q.Order != "" {
		values.Set("order", string(q.Order))
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(q.PageSize))
	}

	path := "/entries"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var list dto.ListResponse
	_, err := c.do(ctx, http.MethodGet, path, nil, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) Stats(ctx context.Context) (*entry.Stats, error) {
	var stats entry.Stats
	_, err := c.do(ctx, http.MethodGet, "/entries/stats", nil, &stats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
