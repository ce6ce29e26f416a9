package balance

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/pkg/errors"
	"github.com/region23/desco-balance-bot/pkg/metrics"
)

// Reading содержит показания баланса, полученные от DESCO
type Reading struct {
	Balance     float64
	Consumption float64 // 0 означает "не передано"
	ReadingTime string
}

// Result итог запроса баланса. При успехе заполнены Reading и Source,
// при ошибке Err и AttemptedURLs.
type Result struct {
	Reading       Reading
	Source        string
	Err           error
	AttemptedURLs []string
}

// OK сообщает, удалось ли получить баланс
func (r Result) OK() bool {
	return r.Err == nil
}

// Fetcher получает баланс по идентификаторам счета
type Fetcher interface {
	Fetch(ctx context.Context, accountNo, meterNo string) Result
}

// Config настройки клиента
type Config struct {
	Endpoints   []string
	Timeout     time.Duration
	InsecureTLS bool
}

// Client опрашивает эндпоинты DESCO по порядку до первого корректного ответа
type Client struct {
	endpoints  []string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient создает клиента DESCO
func NewClient(cfg Config, logger *zap.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		// у prepaid.desco.org.bd неполная цепочка сертификатов
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Client{
		endpoints: cfg.Endpoints,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// payload ответ DESCO. Поля данных указатели, чтобы отличать null и отсутствие от нуля.
type payload struct {
	Code int `json:"code"`
	Data *struct {
		Balance                 *float64 `json:"balance"`
		CurrentMonthConsumption *float64 `json:"currentMonthConsumption"`
		ReadingTime             *string  `json:"readingTime"`
	} `json:"data"`
}

// attempt результат обращения к одному эндпоинту
type attempt struct {
	url     string
	reading Reading
	err     error
}

// Fetch запрашивает баланс. Ошибки отдельных эндпоинтов не прерывают перебор.
func (c *Client) Fetch(ctx context.Context, accountNo, meterNo string) Result {
	if accountNo == "" && meterNo == "" {
		return Result{Err: errors.ErrIdentifierRequired}
	}

	query := url.Values{}
	if accountNo != "" {
		query.Set("accountNo", accountNo)
	}
	if meterNo != "" {
		query.Set("meterNo", meterNo)
	}

	var (
		attempted []string
		lastErr   error
	)
	for _, endpoint := range c.endpoints {
		a := c.try(ctx, endpoint, query)
		if a.err == nil {
			return Result{Reading: a.reading, Source: a.url}
		}

		c.logger.Warn("Balance endpoint failed",
			zap.String("url", a.url),
			zap.Error(a.err))
		attempted = append(attempted, a.url)
		lastErr = a.err

		if ctx.Err() != nil {
			break
		}
	}

	return Result{
		Err:           errors.ErrFetchFailed.WithError(lastErr),
		AttemptedURLs: attempted,
	}
}

func (c *Client) try(ctx context.Context, endpoint string, query url.Values) attempt {
	fullURL := endpoint + "?" + query.Encode()
	a := attempt{url: fullURL}

	start := time.Now()
	a.reading, a.err = c.get(ctx, fullURL)

	status := "success"
	if a.err != nil {
		status = "error"
	}
	metrics.RecordBalanceFetch(endpoint, status, time.Since(start).Seconds())
	return a
}

func (c *Client) get(ctx context.Context, fullURL string) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reading{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Reading{}, fmt.Errorf("failed to read body: %w", err)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Reading{}, fmt.Errorf("malformed payload: %w", err)
	}
	if p.Code != http.StatusOK {
		return Reading{}, fmt.Errorf("payload code %d", p.Code)
	}
	if p.Data == nil {
		return Reading{}, fmt.Errorf("payload has no data")
	}
	switch {
	case p.Data.Balance == nil:
		return Reading{}, fmt.Errorf("payload missing balance")
	case p.Data.CurrentMonthConsumption == nil:
		return Reading{}, fmt.Errorf("payload missing currentMonthConsumption")
	case p.Data.ReadingTime == nil || *p.Data.ReadingTime == "":
		return Reading{}, fmt.Errorf("payload missing readingTime")
	}

	return Reading{
		Balance:     *p.Data.Balance,
		Consumption: *p.Data.CurrentMonthConsumption,
		ReadingTime: *p.Data.ReadingTime,
	}, nil
}
