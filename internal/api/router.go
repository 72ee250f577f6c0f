package api

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/micro-nova/slidered/internal/auth"
	"github.com/micro-nova/slidered/internal/models"
)

// NewRouter creates and returns the main HTTP router. messagesPerSec limits
// the messages a websocket surface may send; zero or less means no limit.
func NewRouter(docs Registry, authSvc *auth.Service, bus EventBus, messagesPerSec float64) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)
	r.Use(requireJSON)

	h := &Handlers{
		docs:    docs,
		events:  bus,
		msgRate: messagesPerSec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// A nil CheckOrigin rejects handshakes from foreign pages.
		},
	}

	r.Group(func(r chi.Router) {
		r.Use(authSvc.Middleware)

		r.Get("/api/info", h.getInfo)

		// Documents
		r.Get("/api/documents", h.listDocuments)
		r.Post("/api/documents", h.openDocument)
		r.Route("/api/documents/{id}", func(r chi.Router) {
			r.Get("/", h.getDocument)
			r.Delete("/", h.closeDocument)
			r.Post("/messages", h.postMessage)
			r.Post("/save", h.saveDocument)
			r.Post("/save-as", h.saveDocumentAs)
			r.Post("/revert", h.revertDocument)
			r.Get("/backups", h.listBackups)
			r.Post("/backup", h.backupDocument)
			r.Delete("/backups/{bid}", h.deleteBackup)
			r.Get("/diff", h.diffDocument)
			r.Get("/ws", h.surfaceSocket)
		})

		// Editor page
		r.Get("/edit/{id}", h.editPage)

		// SSE
		r.Get("/api/subscribe", h.sseEvents)
	})

	return r
}

// corsMiddleware only grants CORS to the origin the server itself is
// reached at, so pages from other sites cannot read or drive the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && sameOrigin(r, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sameOrigin(r *http.Request, origin string) bool {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return origin == scheme+"://"+r.Host
}

// requireJSON rejects mutating requests whose body is not JSON. Browsers
// send form and text/plain bodies cross-origin without a preflight.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if r.ContentLength != 0 {
				mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mt != "application/json" {
					writeError(w, &models.AppError{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "request body must be application/json",
						Status:  http.StatusUnsupportedMediaType,
					})
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
