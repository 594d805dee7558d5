// internal/server/routes.go
package server

import (
	"context"
	"net/http"
	"time"

	"homewise/internal/actions"
	"homewise/internal/common/logger"
	"homewise/internal/dashboard"
	"homewise/pkg/registry"
)

// Deps are the services the API exposes.
type Deps struct {
	Actions        *actions.Service
	Dashboard      *dashboard.Service
	Catalog        *registry.Catalog
	Ready          func(ctx context.Context) error
	Metrics        http.Handler
	MetricsPath    string
	AllowedOrigins []string
	Logger         logger.Logger
}

type api struct {
	deps Deps
	log  logger.Logger
}

func NewMux(deps Deps) http.Handler {
	a := &api{deps: deps, log: deps.Logger.With(map[string]interface{}{"component": "http"})}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/actions/predictive-maintenance", a.predictiveMaintenance)
	mux.HandleFunc("POST /api/actions/recommendations", a.recommendations)
	mux.HandleFunc("POST /api/actions/chat", a.chat)

	mux.HandleFunc("GET /api/machines", a.listMachines)
	mux.HandleFunc("POST /api/machines", a.addMachine)
	mux.HandleFunc("GET /api/machines/{id}", a.getMachine)
	mux.HandleFunc("POST /api/machines/{id}/predict", a.predictForMachine)
	mux.HandleFunc("POST /api/machines/{id}/recommendations", a.recommendForMachine)

	mux.HandleFunc("GET /api/tasks", a.listTasks)
	mux.HandleFunc("POST /api/tasks", a.addReminder)

	mux.HandleFunc("GET /api/dashboard", a.dashboard)
	mux.HandleFunc("GET /api/notifications", a.notifications)
	mux.HandleFunc("GET /api/flows", a.flows)

	mux.HandleFunc("GET /health", a.health)
	mux.HandleFunc("GET /ready", a.ready)
	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, deps.Metrics)
	}

	return CORS(deps.AllowedOrigins)(RequestID(Observe(a.log)(mux)))
}

func (a *api) predictiveMaintenance(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.deps.Actions.RunPredictiveMaintenance(r.Context(), raw)
	a.respond(w, http.StatusOK, out, err)
}

func (a *api) recommendations(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.deps.Actions.RunAiRecommendations(r.Context(), raw)
	a.respond(w, http.StatusOK, out, err)
}

func (a *api) chat(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.deps.Actions.RunChat(r.Context(), raw)
	a.respond(w, http.StatusOK, out, err)
}

func (a *api) listMachines(w http.ResponseWriter, r *http.Request) {
	out, err := a.deps.Actions.ListMachines(r.Context())
	a.respond(w, http.StatusOK, out, err)
}

func (a *api) addMachine(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.deps.Actions.AddMachine(r.Context(), raw)
	a.respond(w, http.StatusCreated, out, err)
}

func (a *api) getMachine(w http.ResponseWriter, r *http.Request) {
	out, err := a.deps.Actions.GetMachine(r.Context(), r.PathValue("id"))
	a.respond(w, http.StatusOK, out, err)
}

func (a *api) predictForMachine(w http.ResponseWriter, r *http.Request) {
	out, err := a.deps.Actions.PredictForMachine(r.Context(), r.PathValue("id"))
	a.respond(w, http.StatusCreated, out, err)
}

func (a *api) recommendForMachine(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.deps.Actions.RecommendForMachine(r.Context(), r.PathValue("id"), raw)
	a.respond(w, http.StatusOK, out, err)
}

func (a *api) listTasks(w http.ResponseWriter, r *http.Request) {
	out, err := a.deps.Actions.ListTasks(r.Context())
	a.respond(w, http.StatusOK, out, err)
}

func (a *api) addReminder(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.deps.Actions.AddReminder(r.Context(), raw)
	a.respond(w, http.StatusCreated, out, err)
}

func (a *api) dashboard(w http.ResponseWriter, r *http.Request) {
	out, err := a.deps.Dashboard.Summary(r.Context())
	a.respond(w, http.StatusOK, out, err)
}

func (a *api) notifications(w http.ResponseWriter, r *http.Request) {
	out, err := a.deps.Dashboard.UpcomingReminders(r.Context())
	if err == nil && out == nil {
		out = []dashboard.UpcomingTask{}
	}
	a.respond(w, http.StatusOK, out, err)
}

func (a *api) flows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Catalog)
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *api) ready(w http.ResponseWriter, r *http.Request) {
	if a.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.Ready(ctx); err != nil {
			a.log.Warn("Readiness check failed", map[string]interface{}{"error": err.Error()})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *api) respond(w http.ResponseWriter, status int, out interface{}, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, out)
}
