package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/price-hunter/internal/config"
	"github.com/fairyhunter13/price-hunter/internal/events"
	httpopenapi "github.com/fairyhunter13/price-hunter/internal/http/openapi"
	"github.com/fairyhunter13/price-hunter/internal/orchestrator"
	"github.com/fairyhunter13/price-hunter/internal/registry"
)

type App struct {
	Cfg     config.Config
	Reg     *registry.Registry
	Bus     *events.Broadcaster
	Orch    *orchestrator.Orchestrator
	started time.Time
}

type searchRequest struct {
	Product string `json:"product"`
	App     string `json:"app,omitempty"`
}

type orderRequest struct {
	Product string `json:"product"`
	App     string `json:"app"`
}

type taskAck struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

func NewApp(cfg config.Config, reg *registry.Registry, bus *events.Broadcaster, orch *orchestrator.Orchestrator) *App {
	return &App{Cfg: cfg, Reg: reg, Bus: bus, Orch: orch, started: time.Now()}
}

func (a *App) StartShutdown() {
	a.Orch.CloseIntake()
}

func (a *App) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (a *App) writeAck(w http.ResponseWriter, r *http.Request, taskID, status string) {
	ac := taskAck{TaskID: taskID, Status: status, RequestID: RequestIDFromContext(r.Context())}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(ac)
}

func (a *App) postSearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if a.Orch.IsShuttingDown() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	var req searchRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Product) == "" {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "product is required")
		return
	}

	var (
		id  string
		err error
	)
	if req.App != "" {
		id, err = a.Orch.StartSearchOne(req.Product, req.App)
	} else {
		id, err = a.Orch.StartSearch(req.Product)
	}
	if err != nil {
		if errors.Is(err, orchestrator.ErrShuttingDown) {
			WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
			return
		}
		WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	a.writeAck(w, r, id, "started")
}

func (a *App) postOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if a.Orch.IsShuttingDown() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	var req orderRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Product) == "" {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "product is required")
		return
	}
	if req.App == "" {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "app is required")
		return
	}
	id, err := a.Orch.StartOrder(req.Product, req.App)
	if err != nil {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	a.writeAck(w, r, id, "ordering")
}

func (a *App) getStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/status/")
	if id == "" || strings.Contains(id, "/") {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	t, err := a.Reg.Get(id)
	if err != nil {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(t)
}

func (a *App) storefrontsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"storefronts": a.Orch.Storefronts()})
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	created, evicted, active := a.Reg.Metrics()
	published, dropped := a.Bus.Metrics()
	started, finished := a.Orch.Metrics()
	m := map[string]any{
		"tasks_created":    created,
		"tasks_evicted":    evicted,
		"tasks_active":     active,
		"tasks_started":    started,
		"tasks_finished":   finished,
		"events_published": published,
		"events_dropped":   dropped,
		"subscribers":      a.Bus.Subscribers(),
		"uptime_sec":       time.Since(a.started).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
