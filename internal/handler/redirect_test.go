package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/repo-redirector/internal/cache"
	"github.com/naka-gawa/repo-redirector/internal/domain"
	"github.com/naka-gawa/repo-redirector/internal/gateway"
	"github.com/naka-gawa/repo-redirector/internal/scheduler"
	"github.com/naka-gawa/repo-redirector/internal/usecase"
)

// mockBuilder is a mock implementation of the Builder interface.
type mockBuilder struct {
	mock.Mock
}

func (m *mockBuilder) Build(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRedirect_ServeHTTP(t *testing.T) {
	testCases := []struct {
		name             string
		path             string
		expectedStatus   int
		expectedBody     string
		expectedLocation string
	}{
		{name: "root is a health check", path: "/", expectedStatus: http.StatusOK, expectedBody: BodyOK},
		{name: "exact name", path: "/Foo", expectedStatus: http.StatusMovedPermanently, expectedLocation: "https://x/Foo"},
		{name: "lowercase name", path: "/foo", expectedStatus: http.StatusMovedPermanently, expectedLocation: "https://x/Foo"},
		{name: "uppercase name", path: "/FOO", expectedStatus: http.StatusMovedPermanently, expectedLocation: "https://x/Foo"},
		{name: "unknown name", path: "/nope", expectedStatus: http.StatusNotFound, expectedBody: BodyNotFound},
		{name: "trailing slash is part of the key", path: "/foo/", expectedStatus: http.StatusNotFound, expectedBody: BodyNotFound},
		{name: "dotted name", path: "/my.project", expectedStatus: http.StatusMovedPermanently, expectedLocation: "https://x/my.project"},
		{name: "escaped characters are not decoded", path: "/my%2Eproject", expectedStatus: http.StatusNotFound, expectedBody: BodyNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			index := cache.New()
			index.Replace(domain.Index{"foo": "https://x/Foo", "my.project": "https://x/my.project"})
			builder := new(mockBuilder)

			rec := serve(NewRedirect(index, builder, log.New(io.Discard, "", 0)), tc.path)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			if tc.expectedLocation != "" {
				assert.Equal(t, tc.expectedLocation, rec.Header().Get("Location"))
			} else {
				assert.Equal(t, tc.expectedBody, rec.Body.String())
				assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
			}
			// A populated index never triggers a build.
			builder.AssertNotCalled(t, "Build", mock.Anything)
		})
	}
}

func TestRedirect_LazyBuild(t *testing.T) {
	index := cache.New()
	builder := new(mockBuilder)
	builder.On("Build", mock.Anything).Run(func(args mock.Arguments) {
		index.Replace(domain.Index{"foo": "https://x/Foo"})
	}).Return(nil).Once()
	h := NewRedirect(index, builder, log.New(io.Discard, "", 0))

	rec := serve(h, "/foo")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://x/Foo", rec.Header().Get("Location"))

	// Later requests use the cached index.
	rec = serve(h, "/FOO")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	builder.AssertExpectations(t)
}

func TestRedirect_LazyBuildFailure(t *testing.T) {
	for _, path := range []string{"/", "/foo"} {
		t.Run(path, func(t *testing.T) {
			index := cache.New()
			builder := new(mockBuilder)
			builder.On("Build", mock.Anything).Return(fmt.Errorf("secret detail: %w", domain.ErrUpstream))

			rec := serve(NewRedirect(index, builder, log.New(io.Discard, "", 0)), path)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, BodyUnavailable, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "secret detail")
			assert.False(t, index.Populated())
		})
	}
}

func TestRedirect_LazyBuildIgnoresClientCancel(t *testing.T) {
	index := cache.New()
	builder := new(mockBuilder)
	builder.On("Build", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	})).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	NewRedirect(index, builder, log.New(io.Discard, "", 0)).ServeHTTP(rec, req)

	builder.AssertExpectations(t)
}

// TestRedirect_EndToEnd wires the real gateway, indexer and scheduler against a mock upstream.
func TestRedirect_EndToEnd(t *testing.T) {
	testCases := []struct {
		name         string
		status       int
		failureBody  string
		expectedLogs string
	}{
		{name: "upstream error status", status: http.StatusBadGateway, failureBody: `{"message":"upstream down"}`, expectedLogs: "502 - Bad Gateway"},
		{name: "empty body", status: http.StatusOK, failureBody: ``, expectedLogs: "empty or null"},
		{name: "null body", status: http.StatusOK, failureBody: `null`, expectedLogs: "empty or null"},
		{name: "record without a name", status: http.StatusOK, failureBody: `[{"html_url":"https://x/noname"}]`, expectedLogs: "has no name"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var failing atomic.Bool
			var calls atomic.Int32
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				if failing.Load() {
					w.WriteHeader(tc.status)
					fmt.Fprint(w, tc.failureBody)
					return
				}
				fmt.Fprint(w, `[{"name":"A","html_url":"https://x/A"},{"name":"a","html_url":"https://x/a"},{"name":"Foo","html_url":"https://x/Foo"}]`)
			}))
			defer upstream.Close()

			var logs bytes.Buffer
			logger := log.New(&logs, "", 0)
			httpClient, err := gateway.NewHTTPClient("", time.Second)
			require.NoError(t, err)
			lister, err := gateway.NewRESTLister(httpClient, upstream.URL, "test-agent", logger)
			require.NoError(t, err)
			index := cache.New()
			indexer := usecase.NewIndexer(lister, index, "any-user", nil, logger)
			h := NewRedirect(index, indexer, logger)
			sched, err := scheduler.New(indexer, logger)
			require.NoError(t, err)

			rec := serve(h, "/a")
			assert.Equal(t, http.StatusMovedPermanently, rec.Code)
			assert.Equal(t, "https://x/a", rec.Header().Get("Location"))
			previous := domain.Index{"a": "https://x/a", "foo": "https://x/Foo"}
			assert.Equal(t, previous, index.Snapshot())

			// A failed scheduled refresh keeps serving the previous index.
			failing.Store(true)
			sched.Refresh()

			assert.Contains(t, logs.String(), "Scheduled fetch failed")
			assert.Contains(t, logs.String(), tc.expectedLogs)
			assert.Equal(t, previous, index.Snapshot())
			assert.True(t, index.Populated())

			rec = serve(h, "/foo")
			assert.Equal(t, http.StatusMovedPermanently, rec.Code)
			assert.Equal(t, "https://x/Foo", rec.Header().Get("Location"))
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}
