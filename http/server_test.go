package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/handbook"
	hbhttp "github.com/fwojciec/handbook/http"
	"github.com/fwojciec/handbook/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *handbook.Catalog {
	t.Helper()
	c, err := handbook.NewCatalog([]handbook.Descriptor{{
		ID:          "engineering",
		Name:        "工学部",
		Source:      "/secret/path/kougaku.pdf",
		Departments: []handbook.Department{{ID: "architecture", Name: "建築学科"}},
	}})
	require.NoError(t, err)
	return c
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) hbhttp.ErrorResponse {
	t.Helper()
	var resp hbhttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServer_Chat(t *testing.T) {
	t.Parallel()

	t.Run("returns answer for valid question", func(t *testing.T) {
		t.Parallel()

		var got *handbook.Question
		asker := &mock.Asker{AskFn: func(_ context.Context, q *handbook.Question) (*handbook.Answer, error) {
			got = q
			return &handbook.Answer{Text: "2ページに記載されています。", Truncated: true}, nil
		}}
		s := hbhttp.NewServer(asker, testCatalog(t))

		for _, path := range []string{"/", "/api/chat"} {
			rec := post(t, s.Handler(), path, `{"message":"図書館 開館時間","faculty":"engineering","department":"architecture","grade":"2年生","history":[{"content":"こんにちは","isUser":true}]}`)

			require.Equal(t, http.StatusOK, rec.Code, path)
			assert.JSONEq(t, `{"response":"2ページに記載されています。"}`, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get(hbhttp.RequestIDHeader))
			assert.Equal(t, "engineering", got.DocumentID)
			assert.Equal(t, "architecture", got.DepartmentID)
			assert.Equal(t, "2年生", got.Grade)
			require.Len(t, got.History, 1)
			assert.True(t, got.History[0].IsUser)
		}
	})

	t.Run("empty message is 400 without ingestion or model call", func(t *testing.T) {
		t.Parallel()

		ingestor := &mock.Ingestor{}
		completer := &mock.Completer{}
		asker := &mock.Asker{AskFn: func(_ context.Context, q *handbook.Question) (*handbook.Answer, error) {
			if err := q.Validate(); err != nil {
				return nil, err
			}
			_, _ = ingestor.Ingest(context.Background(), "x")
			_, _ = completer.Complete(context.Background(), "x")
			return &handbook.Answer{}, nil
		}}
		s := hbhttp.NewServer(asker, testCatalog(t))

		rec := post(t, s.Handler(), "/api/chat", `{"message":"","faculty":"engineering"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "message required", decodeError(t, rec).Error)
		assert.Zero(t, ingestor.Calls.Load())
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		t.Parallel()

		s := hbhttp.NewServer(&mock.Asker{}, testCatalog(t))

		rec := post(t, s.Handler(), "/api/chat", `{"message":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid request body", decodeError(t, rec).Error)
	})

	t.Run("unknown faculty is 400", func(t *testing.T) {
		t.Parallel()

		asker := &mock.Asker{AskFn: func(context.Context, *handbook.Question) (*handbook.Answer, error) {
			return nil, handbook.Errorf(handbook.ENOTFOUND, "unknown faculty %q", "medicine")
		}}
		s := hbhttp.NewServer(asker, testCatalog(t))

		rec := post(t, s.Handler(), "/api/chat", `{"message":"図書館","faculty":"medicine"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Error, "unknown faculty")
	})

	t.Run("quota exhaustion is 429 with retry after", func(t *testing.T) {
		t.Parallel()

		asker := &mock.Asker{AskFn: func(context.Context, *handbook.Question) (*handbook.Answer, error) {
			return nil, handbook.RateLimitf(0, "model quota exceeded")
		}}
		s := hbhttp.NewServer(asker, testCatalog(t))

		rec := post(t, s.Handler(), "/api/chat", `{"message":"図書館","faculty":"engineering"}`)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		resp := decodeError(t, rec)
		assert.Equal(t, 60, resp.RetryAfter)
		assert.Contains(t, resp.Error, "60秒後")
	})

	t.Run("server failures hide details", func(t *testing.T) {
		t.Parallel()

		var logs bytes.Buffer
		asker := &mock.Asker{AskFn: func(context.Context, *handbook.Question) (*handbook.Answer, error) {
			return nil, fmt.Errorf("open /secret/path/kougaku.pdf: permission denied")
		}}
		s := hbhttp.NewServer(asker, testCatalog(t), hbhttp.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

		rec := post(t, s.Handler(), "/api/chat", `{"message":"図書館","faculty":"engineering"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "/secret/")
		assert.NotContains(t, rec.Body.String(), "retryAfter")
		assert.Contains(t, logs.String(), "permission denied")
	})

	t.Run("unavailable handbook is 500", func(t *testing.T) {
		t.Parallel()

		asker := &mock.Asker{AskFn: func(context.Context, *handbook.Question) (*handbook.Answer, error) {
			return nil, handbook.Errorf(handbook.EUNAVAILABLE, "handbook for 工学部 is not available")
		}}
		s := hbhttp.NewServer(asker, testCatalog(t))

		rec := post(t, s.Handler(), "/api/chat", `{"message":"図書館","faculty":"engineering"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "学生便覧の読み込みに失敗しました。", decodeError(t, rec).Error)
	})
}

func TestServer_Faculties(t *testing.T) {
	t.Parallel()

	s := hbhttp.NewServer(&mock.Asker{}, testCatalog(t))
	req := httptest.NewRequest(http.MethodGet, "/api/faculties", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"faculties":[{"id":"engineering","name":"工学部","departments":[{"id":"architecture","name":"建築学科"}]}]}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestServer_CORS(t *testing.T) {
	t.Parallel()

	s := hbhttp.NewServer(&mock.Asker{}, testCatalog(t), hbhttp.WithAllowOrigins("https://handbook.example.ac.jp"))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://handbook.example.ac.jp")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://handbook.example.ac.jp", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RequestID(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	s := hbhttp.NewServer(&mock.Asker{}, testCatalog(t), hbhttp.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(hbhttp.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(hbhttp.RequestIDHeader))
	assert.Contains(t, logs.String(), "request_id=req-123")
	assert.Contains(t, logs.String(), "status=200")
}

func TestServer_OpenClose(t *testing.T) {
	t.Parallel()

	s := hbhttp.NewServer(&mock.Asker{}, testCatalog(t), hbhttp.WithAddr("127.0.0.1:0"))
	require.NoError(t, s.Open())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	require.NoError(t, s.Close())
}
