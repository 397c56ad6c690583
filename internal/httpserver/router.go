package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fieldtrack-go/internal/handlers"
	"fieldtrack-go/internal/logging"
)

func NewRouter(d *handlers.Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors)

	r.Get("/", handlers.Root)
	r.Get("/status", handlers.Status(d))

	r.Route("/locations", func(r chi.Router) {
		r.Get("/", handlers.ListLocations(d))
		r.Post("/", handlers.SaveLocation(d))
		r.Patch("/{row}", handlers.UpdateLocation(d))
	})
	r.Get("/draft", handlers.GetDraft(d))
	r.Put("/draft", handlers.PutDraft(d))
	r.Post("/photo", handlers.StagePhoto(d))
	r.Delete("/photo", handlers.ClearPhoto(d))

	r.Post("/positions", handlers.PushPosition(d))
	r.Post("/positions/error", handlers.PositionError(d))
	r.Post("/connectivity", handlers.SetConnectivity(d))

	r.Route("/alert", func(r chi.Router) {
		r.Get("/", handlers.GetAlert(d))
		r.Post("/dismiss", handlers.DismissAlert(d))
		r.Get("/navigate", handlers.NavigateAlert(d))
	})

	r.Route("/route", func(r chi.Router) {
		r.Get("/", handlers.GetRoute(d))
		r.Post("/start", handlers.StartRoute(d))
		r.Post("/stop", handlers.StopRoute(d))
	})

	r.Post("/sync", handlers.TriggerSync(d))
	r.Post("/wake", handlers.Wake(d))
	r.Post("/plan", handlers.Plan(d))
	return r
}

func requestLogger(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

// cors sets permissive CORS headers and answers preflight requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
