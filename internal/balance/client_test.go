package balance

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/region23/desco-balance-bot/pkg/errors"
)

const validBody = `{"code":200,"data":{"balance":80.5,"currentMonthConsumption":123.4567,"readingTime":"2024-06-01 07:00:00"}}`

func newTestClient(t *testing.T, endpoints ...string) *Client {
	t.Helper()
	return NewClient(Config{Endpoints: endpoints, Timeout: 2 * time.Second}, zaptest.NewLogger(t))
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestFetch_FallbackToSecondEndpoint(t *testing.T) {
	first := httptest.NewServer(respond(http.StatusOK,
		`{"code":200,"data":{"balance":10,"currentMonthConsumption":1}}`))
	defer first.Close()

	var gotQuery string
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		respond(http.StatusOK, validBody)(w, r)
	}))
	defer second.Close()

	client := newTestClient(t, first.URL+"/unified", second.URL+"/tkdes")
	res := client.Fetch(context.Background(), "12345678", "")

	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if !strings.HasPrefix(res.Source, second.URL) {
		t.Errorf("Source = %q, want second endpoint", res.Source)
	}
	if len(res.AttemptedURLs) != 0 {
		t.Errorf("success must not carry earlier failures: %v", res.AttemptedURLs)
	}
	if res.Reading.Balance != 80.5 || res.Reading.ReadingTime != "2024-06-01 07:00:00" {
		t.Errorf("unexpected reading: %+v", res.Reading)
	}
	if gotQuery != "accountNo=12345678" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestFetch_FirstEndpointShortCircuits(t *testing.T) {
	var secondCalls int32
	first := httptest.NewServer(respond(http.StatusOK, validBody))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondCalls, 1)
	}))
	defer second.Close()

	res := newTestClient(t, first.URL, second.URL).Fetch(context.Background(), "", "999")
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if atomic.LoadInt32(&secondCalls) != 0 {
		t.Errorf("second endpoint must not be called")
	}
}

func TestFetch_AllEndpointsFail(t *testing.T) {
	first := httptest.NewServer(respond(http.StatusInternalServerError, `oops`))
	defer first.Close()
	second := httptest.NewServer(respond(http.StatusOK, `{"code":400,"data":null}`))
	defer second.Close()

	res := newTestClient(t, first.URL, second.URL).Fetch(context.Background(), "1", "2")

	if res.OK() {
		t.Fatalf("expected failure")
	}
	if len(res.AttemptedURLs) != 2 {
		t.Fatalf("AttemptedURLs = %v, want 2", res.AttemptedURLs)
	}
	if !strings.Contains(res.AttemptedURLs[0], "accountNo=1&meterNo=2") {
		t.Errorf("attempted URL lacks identifiers: %s", res.AttemptedURLs[0])
	}
	if !stderrors.Is(res.Err, errors.ErrFetchFailed) {
		t.Errorf("expected FETCH_FAILED, got %v", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "payload code 400") {
		t.Errorf("expected last error to be reported, got %v", res.Err)
	}
}

func TestFetch_IdentifierRequired(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Fetch(context.Background(), "", "")
	if !stderrors.Is(res.Err, errors.ErrIdentifierRequired) {
		t.Fatalf("expected IDENTIFIER_REQUIRED, got %v", res.Err)
	}
	if res.Err.Error() != "IDENTIFIER_REQUIRED: identifier required" {
		t.Errorf("Err = %q", res.Err.Error())
	}
	if len(res.AttemptedURLs) != 0 || atomic.LoadInt32(&calls) != 0 {
		t.Errorf("no network call expected")
	}
}

func TestFetch_MalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>maintenance</html>`},
		{"null balance", `{"code":200,"data":{"balance":null,"currentMonthConsumption":1,"readingTime":"x"}}`},
		{"missing consumption", `{"code":200,"data":{"balance":1,"readingTime":"x"}}`},
		{"empty reading time", `{"code":200,"data":{"balance":1,"currentMonthConsumption":1,"readingTime":""}}`},
		{"no data", `{"code":200}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(respond(http.StatusOK, tt.body))
			defer srv.Close()

			res := newTestClient(t, srv.URL).Fetch(context.Background(), "1", "")
			if res.OK() {
				t.Fatalf("expected failure for %s", tt.name)
			}
			if len(res.AttemptedURLs) != 1 {
				t.Errorf("AttemptedURLs = %v", res.AttemptedURLs)
			}
		})
	}
}

func TestFetch_ZeroConsumptionIsValid(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusOK,
		`{"code":200,"data":{"balance":0,"currentMonthConsumption":0,"readingTime":"t"}}`))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Fetch(context.Background(), "1", "")
	if !res.OK() {
		t.Fatalf("zero values are valid readings: %v", res.Err)
	}
}
