package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/murmur/internal/transport/http/handlers"
	"github.com/vedran77/murmur/internal/transport/http/middleware"
	"go.uber.org/zap"
)

type Options struct {
	Auth     *handlers.AuthHandler
	Messages *handlers.MessageHandler
	Uploads  *handlers.UploadHandler

	Authn middleware.Authenticator
	WS    http.Handler
	Blobs http.Handler

	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int

	Log *zap.Logger
}

// New builds the public HTTP surface.
func New(o Options) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(o.Log))
	r.Use(middleware.CORS(o.CORSOrigin))

	// CORS preflight needs a matching route to reach the middleware
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Public
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if o.WS != nil {
		r.Handle("/ws", o.WS).Methods(http.MethodGet)
	}
	if o.Blobs != nil {
		r.PathPrefix("/uploads/").Handler(o.Blobs).Methods(http.MethodGet, http.MethodHead)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	auth := middleware.Auth(o.Authn, o.Log)

	// Auth
	authRoutes := api.PathPrefix("/auth").Subrouter()
	limited := middleware.RateLimit(o.RateLimitRPS, o.RateLimitBurst)
	authRoutes.Handle("/register", limited(http.HandlerFunc(o.Auth.Register))).Methods(http.MethodPost)
	authRoutes.Handle("/login", limited(http.HandlerFunc(o.Auth.Login))).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", o.Auth.Logout).Methods(http.MethodPost)
	authRoutes.Handle("/me", auth(http.HandlerFunc(o.Auth.Me))).Methods(http.MethodGet)
	authRoutes.Handle("/profile", auth(http.HandlerFunc(o.Auth.UpdateProfile))).Methods(http.MethodPut)

	// Protected - Messages
	msgs := api.PathPrefix("/messages").Subrouter()
	msgs.Use(auth)
	msgs.HandleFunc("/contacts", o.Messages.Contacts).Methods(http.MethodGet)
	msgs.HandleFunc("/chats", o.Messages.Chats).Methods(http.MethodGet)
	msgs.HandleFunc("/online", o.Messages.Online).Methods(http.MethodGet)
	msgs.HandleFunc("/upload", o.Uploads.Upload).Methods(http.MethodPost)
	msgs.HandleFunc("/send/{peerId}", o.Messages.Send).Methods(http.MethodPost)
	msgs.HandleFunc("/message/{id}", o.Messages.Edit).Methods(http.MethodPut)
	msgs.HandleFunc("/message/{id}/reaction", o.Messages.React).Methods(http.MethodPut)
	msgs.HandleFunc("/message/{id}", o.Messages.Delete).Methods(http.MethodDelete)
	msgs.HandleFunc("/{peerId}", o.Messages.Thread).Methods(http.MethodGet)

	return r
}
