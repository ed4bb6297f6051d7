package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"embed-resolver/pkg/appctx"
	"embed-resolver/pkg/config"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/services"
	"embed-resolver/pkg/store"
	"embed-resolver/pkg/types"
)

const (
	sourceURL = "https://yandex.ru/video/preview/abc"
	iframeURL = "https://rutube.ru/play/embed/123"
)

type fakeExtractor struct {
	result string
	err    error
	calls  atomic.Int32
}

func (f *fakeExtractor) Name() string { return "fake" }
func (f *fakeExtractor) Close() error { return nil }

func (f *fakeExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type brokenStore struct{}

func (brokenStore) Read(ctx context.Context, key string, dst any) error {
	return fmt.Errorf("%w: read-only filesystem", types.ErrStorage)
}

func (brokenStore) Write(ctx context.Context, key string, doc any) error {
	return fmt.Errorf("%w: read-only filesystem", types.ErrStorage)
}

type testEnv struct {
	mux       *http.ServeMux
	store     *store.Memory
	configs   *services.ConfigStore
	extractor *fakeExtractor
}

func newTestEnv(t *testing.T, ex *fakeExtractor) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, ex, nil)
}

func newTestEnvWithStore(t *testing.T, ex *fakeExtractor, broken *brokenStore) *testEnv {
	t.Helper()
	log := logging.New("debug", false, io.Discard)
	cfg := config.Default()

	mem := store.NewMemory()
	var configs *services.ConfigStore
	var cache *services.ResolutionCache
	if broken != nil {
		configs = services.NewConfigStore(broken, cfg.SourceURLPrefix, log)
		cache = services.NewResolutionCache(broken, log)
	} else {
		configs = services.NewConfigStore(mem, cfg.SourceURLPrefix, log)
		cache = services.NewResolutionCache(mem, log)
	}
	resolver := services.NewResolver(configs, cache, ex, log, false)

	ctx := appctx.New(cfg, log, "test").
		WithConfigStore(configs).
		WithCache(cache).
		WithResolver(resolver)

	h := NewHandlers(ctx)
	h.now = func() time.Time { return time.UnixMilli(1_000_000) }

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &testEnv{mux: mux, store: mem, configs: configs, extractor: ex}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestUpdateURL(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantStored string
	}{
		{
			name:       "valid url",
			body:       `{"newUrl":"` + sourceURL + `"}`,
			wantStatus: http.StatusOK,
			wantStored: sourceURL,
		},
		{
			name:       "missing newUrl",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong prefix",
			body:       `{"newUrl":"https://example.com/video/1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not json",
			body:       `newUrl=x`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong type",
			body:       `{"newUrl":42}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeExtractor{result: iframeURL})
			rec := env.do(http.MethodPost, "/update-url", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			body := decodeBody(t, rec)
			if tt.wantStatus == http.StatusOK {
				if body["url"] != tt.wantStored || body["message"] == "" {
					t.Errorf("unexpected body: %v", body)
				}
			} else if body["error"] == nil {
				t.Errorf("expected error field, got %v", body)
			}

			got, _ := env.configs.GetConfiguredURL(context.Background())
			if got != tt.wantStored {
				t.Errorf("stored url = %q, want %q", got, tt.wantStored)
			}
		})
	}
}

func TestCurrentURL_NotConfigured(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{result: iframeURL})

	rec := env.do(http.MethodGet, "/current-url", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if decodeBody(t, rec)["error"] == nil {
		t.Error("expected error field")
	}
	if env.extractor.calls.Load() != 0 {
		t.Error("extractor called without configuration")
	}
}

func TestCurrentURL_ResolvesAndCaches(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{result: iframeURL})
	env.do(http.MethodPost, "/update-url", `{"newUrl":"`+sourceURL+`"}`)

	for i := 0; i < 3; i++ {
		rec := env.do(http.MethodGet, "/current-url", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		if got := decodeBody(t, rec)["iframeUrl"]; got != iframeURL {
			t.Errorf("iframeUrl = %v", got)
		}
	}

	if n := env.extractor.calls.Load(); n != 1 {
		t.Errorf("extractions = %d, want 1", n)
	}
}

func TestCurrentURL_ExtractionFailure(t *testing.T) {
	ex := &fakeExtractor{err: fmt.Errorf("%w: navigation timeout", types.ErrExtraction)}
	env := newTestEnv(t, ex)
	env.do(http.MethodPost, "/update-url", `{"newUrl":"`+sourceURL+`"}`)

	rec := env.do(http.MethodGet, "/current-url", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if _, ok := env.store.Raw(types.CacheDocumentKey); ok {
		t.Error("cache written after failed extraction")
	}
}

func TestCurrentURL_StorageFailure(t *testing.T) {
	env := newTestEnvWithStore(t, &fakeExtractor{result: iframeURL}, &brokenStore{})

	rec := env.do(http.MethodGet, "/current-url", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	rec = env.do(http.MethodPost, "/update-url", `{"newUrl":"`+sourceURL+`"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("update status = %d, want 500", rec.Code)
	}
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{result: iframeURL + `?a=1&b="x"`})
	env.do(http.MethodPost, "/update-url", `{"newUrl":"`+sourceURL+`"}`)

	rec := env.do(http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `<iframe src="https://rutube.ru/play/embed/123?a=1&amp;b=%22x%22"`) {
		t.Errorf("iframe src not rendered or not escaped: %s", body)
	}
	if !strings.Contains(body, `width="800" height="450"`) || !strings.Contains(body, "allowfullscreen") {
		t.Errorf("iframe attributes missing: %s", body)
	}
}

func TestIndex_RedirectsOnFailure(t *testing.T) {
	tests := []struct {
		name      string
		configure bool
		extractor *fakeExtractor
	}{
		{"not configured", false, &fakeExtractor{result: iframeURL}},
		{"extraction failed", true, &fakeExtractor{err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.extractor)
			if tt.configure {
				env.do(http.MethodPost, "/update-url", `{"newUrl":"`+sourceURL+`"}`)
			}

			rec := env.do(http.MethodGet, "/", "")
			if rec.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != "/current-url" {
				t.Errorf("Location = %q", loc)
			}
		})
	}
}

func TestUnknownPath(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{result: iframeURL})
	if rec := env.do(http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/update-url", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /update-url status = %d, want 405", rec.Code)
	}
}

func TestInfoAndCache(t *testing.T) {
	env := newTestEnv(t, &fakeExtractor{result: iframeURL})
	env.do(http.MethodPost, "/update-url", `{"newUrl":"`+sourceURL+`"}`)
	env.do(http.MethodGet, "/current-url", "")

	rec := env.do(http.MethodGet, "/info", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("info status = %d", rec.Code)
	}
	var info types.InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Status != "ok" || info.Backend != "fake" || info.ConfiguredURL != sourceURL || info.Version != "test" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.SourcePrefix != config.DefaultSourcePrefix {
		t.Errorf("info sourcePrefix = %q", info.SourcePrefix)
	}

	rec = env.do(http.MethodGet, "/cache", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cache status = %d", rec.Code)
	}
	var doc types.CacheDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc[sourceURL] != (types.CacheEntry{URL: iframeURL, Timestamp: 1_000_000}) {
		t.Errorf("unexpected cache: %v", doc)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", types.ErrValidation), http.StatusBadRequest},
		{types.ErrNotConfigured, http.StatusNotFound},
		{fmt.Errorf("%w: x", types.ErrExtraction), http.StatusInternalServerError},
		{fmt.Errorf("%w: x", types.ErrStorage), http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
