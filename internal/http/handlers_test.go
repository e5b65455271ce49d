package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fairyhunter13/price-hunter/internal/config"
	"github.com/fairyhunter13/price-hunter/internal/events"
	"github.com/fairyhunter13/price-hunter/internal/model"
	"github.com/fairyhunter13/price-hunter/internal/obs"
	"github.com/fairyhunter13/price-hunter/internal/orchestrator"
	"github.com/fairyhunter13/price-hunter/internal/registry"
	"github.com/fairyhunter13/price-hunter/internal/storefront"
)

func setupApp(t *testing.T, adapters ...storefront.Adapter) (*App, http.Handler) {
	t.Helper()
	obs.InitLogger()
	cfg := config.Config{
		ProbeTimeout:     2 * time.Second,
		PurchaseTimeout:  2 * time.Second,
		TaskRetention:    time.Minute,
		SubscriberBuffer: 64,
	}
	if len(adapters) == 0 {
		adapters = []storefront.Adapter{
			storefront.NewSim("flipkart", map[string]float64{"milk 1l": 70}),
			storefront.NewSim("amazon", map[string]float64{"milk 1l": 64}),
		}
	}
	reg := registry.New(cfg.TaskRetention)
	bus := events.New(cfg.SubscriberBuffer)
	orch := orchestrator.New(cfg, reg, bus, storefront.NewSet(adapters...))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	orch.Start(ctx)
	app := NewApp(cfg, reg, bus, orch)
	return app, NewRouter(app)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func awaitStatus(t *testing.T, h http.Handler, id string) model.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r := httptest.NewRequest(http.MethodGet, "/status/"+id, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("status %d for task %s", w.Code, id)
		}
		var tk model.Task
		if err := json.Unmarshal(w.Body.Bytes(), &tk); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if tk.Status.Terminal() {
			return tk
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never terminal", id)
	return model.Task{}
}

func TestPostSearchAccepted(t *testing.T) {
	_, h := setupApp(t)
	w := postJSON(t, h, "/search", `{"product":"milk 1l"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var ac struct {
		TaskID    string `json:"task_id"`
		Status    string `json:"status"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ac); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ac.TaskID == "" || ac.Status != "started" || ac.RequestID == "" {
		t.Fatalf("unexpected ack %+v", ac)
	}
	tk := awaitStatus(t, h, ac.TaskID)
	if tk.Status != model.StatusCompleted || tk.Best == nil || tk.Best.App != "amazon" || tk.Best.Price != 64 {
		t.Fatalf("unexpected final task %+v", tk)
	}
}

func TestPostSearchSingleApp(t *testing.T) {
	_, h := setupApp(t)
	w := postJSON(t, h, "/search", `{"product":"milk 1l","app":"flipkart"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	var ac struct {
		TaskID string `json:"task_id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ac)
	tk := awaitStatus(t, h, ac.TaskID)
	if len(tk.Results) != 1 || tk.Best == nil || tk.Best.App != "flipkart" {
		t.Fatalf("unexpected final task %+v", tk)
	}
}

func TestPostSearchValidation(t *testing.T) {
	_, h := setupApp(t)
	cases := []struct {
		name, body string
		ctype      string
		want       int
	}{
		{"missing_product", `{}`, "application/json", http.StatusBadRequest},
		{"blank_product", `{"product":"  "}`, "application/json", http.StatusBadRequest},
		{"unknown_field", `{"product":"x","extra":1}`, "application/json", http.StatusBadRequest},
		{"unknown_app", `{"product":"x","app":"myntra"}`, "application/json", http.StatusBadRequest},
		{"malformed", `{"product":`, "application/json", http.StatusBadRequest},
		{"wrong_ctype", `{"product":"x"}`, "text/plain", http.StatusUnsupportedMediaType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(tc.body))
			r.Header.Set("Content-Type", tc.ctype)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestPostOrderFlow(t *testing.T) {
	_, h := setupApp(t)
	w := postJSON(t, h, "/order", `{"product":"milk 1l","app":"amazon"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	var ac struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ac)
	if ac.Status != "ordering" {
		t.Fatalf("unexpected ack %+v", ac)
	}
	tk := awaitStatus(t, h, ac.TaskID)
	if tk.Status != model.StatusCompleted {
		t.Fatalf("unexpected final task %+v", tk)
	}
}

func TestPostOrderUnknownAppFailsTask(t *testing.T) {
	_, h := setupApp(t)
	w := postJSON(t, h, "/order", `{"product":"milk 1l","app":"myntra"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("order intake must accept and fail the task, got %d", w.Code)
	}
	var ac struct {
		TaskID string `json:"task_id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ac)
	tk := awaitStatus(t, h, ac.TaskID)
	if tk.Status != model.StatusFailed || tk.Error == "" {
		t.Fatalf("expected failed task with reason, got %+v", tk)
	}
}

func TestGetStatusUnknown(t *testing.T) {
	_, h := setupApp(t)
	r := httptest.NewRequest(http.MethodGet, "/status/not-a-task", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStorefrontsListed(t *testing.T) {
	_, h := setupApp(t)
	r := httptest.NewRequest(http.MethodGet, "/storefronts", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Storefronts []string `json:"storefronts"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Storefronts) != 2 || resp.Storefronts[0] != "flipkart" {
		t.Fatalf("unexpected storefronts %v", resp.Storefronts)
	}
}

func TestShutdownRejectsIntake(t *testing.T) {
	app, h := setupApp(t)
	app.StartShutdown()
	w := postJSON(t, h, "/search", `{"product":"milk 1l"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	w = postJSON(t, h, "/order", `{"product":"milk 1l","app":"amazon"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	_, h := setupApp(t)
	for _, path := range []string{"/healthz", "/debug/metrics"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestOpenAPIServed(t *testing.T) {
	_, h := setupApp(t)
	r := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("openapi:")) {
		t.Fatalf("expected openapi content")
	}
}

func TestDocsServed(t *testing.T) {
	_, h := setupApp(t)
	r := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs body")
	}
}
