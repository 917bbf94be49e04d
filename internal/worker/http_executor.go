package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/message"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPExecutor — executor для внешних HTTP-сервисов.
//
// collect-data выполняет GET, process-data — POST с данными payload в теле.
//
// Метаданные команды:
//   - url (string): URL для запроса (обязательно)
//   - method (string): переопределяет HTTP-метод
//   - headers (map[string]any): HTTP-заголовки
//   - timeout_sec (number): таймаут запроса в секундах. Default: 30
//
// Ответ: тело ответа (JSON или строка). HTTP >= 400 — логическая ошибка
// с кодом, равным статусу.
type HTTPExecutor struct {
	// Client — HTTP-клиент (default: http.DefaultClient).
	Client *http.Client
}

// Execute выполняет HTTP-запрос.
func (e *HTTPExecutor) Execute(ctx context.Context, cmd *message.WorkflowMessage) (*ExecutionResult, error) {
	meta := cmd.Metadata()

	url := getString(meta, "url", "")
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrHTTPRequest)
	}

	method := http.MethodGet
	if cmd.IsProcessDataCommand() {
		method = http.MethodPost
	}
	method = getString(meta, "method", method)

	ctx, cancel := context.WithTimeout(ctx, getTimeout(meta))
	defer cancel()

	// Тело запроса — данные предыдущего ответа
	var bodyReader io.Reader
	if cmd.IsProcessDataCommand() {
		bodyBytes, err := json.Marshal(cmd.Payload().Data)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal body: %v", ErrHTTPRequest, err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}

	setHeaders(req, meta)
	req.Header.Set("X-Conveyor-Message", cmd.Name())
	if pos, ok := cmd.ProcessTaskListPosition(); ok {
		req.Header.Set("X-Conveyor-Position", pos.String())
	}

	// Content-Type по умолчанию для запросов с body
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}

	if resp.StatusCode >= 400 {
		return &ExecutionResult{
			Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			Code:  resp.StatusCode,
		}, nil
	}

	return &ExecutionResult{Data: parseBody(respBody)}, nil
}

// parseBody пробует JSON, иначе возвращает строку.
func parseBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	return parsed
}

// getString извлекает строку из метаданных с default значением.
func getString(m domain.Metadata, key, defaultVal string) string {
	if s := m.String(key); s != "" {
		return s
	}
	return defaultVal
}

// getSeconds извлекает длительность в секундах.
func getSeconds(m domain.Metadata, key string) time.Duration {
	switch v := m[key].(type) {
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return 0
}

// getTimeout извлекает таймаут запроса.
func getTimeout(m domain.Metadata) time.Duration {
	if d := getSeconds(m, "timeout_sec"); d > 0 {
		return d
	}
	return defaultHTTPTimeout
}

// setHeaders устанавливает заголовки из метаданных.
func setHeaders(req *http.Request, m domain.Metadata) {
	switch h := m["headers"].(type) {
	case map[string]any:
		for key, val := range h {
			if s, ok := val.(string); ok {
				req.Header.Set(key, s)
			}
		}
	case domain.Metadata:
		for key, val := range h {
			if s, ok := val.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
