package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/blturner/micropub-go/server/storage"
	"github.com/blturner/micropub-go/server/telemetry"
)

// MicropubService wires the endpoint, its stores, and the token
// verifier into an http server.
type MicropubService struct {
	Config   Config
	Server   http.Server
	router   *mux.Router
	store    storage.Database
	endpoint *MicropubEndpoint
}

func (s *MicropubService) addHandlers() {
	s.router.HandleFunc("/", homeHandler).Methods("GET")

	s.router.HandleFunc("/micropub", RequestLogger{Handler: s.endpoint.PostHTTP}.ServeHTTP).Methods("POST")
	s.router.HandleFunc("/micropub", s.endpoint.GetHTTP).Methods("GET")
	s.router.HandleFunc("/micropub/media", RequestLogger{Handler: s.endpoint.media.PostHTTP}.ServeHTTP).Methods("POST")
}

// Close anything related to the service before exiting
func (s *MicropubService) Close() {
	if s.store != nil {
		s.store.Close()
	}
	telemetry.LogCounters()
}

func (s *MicropubService) ListenAndServe() error {
	if s.Config.Server.useTLS() {
		telemetry.Log("tls listener starting on port %d", s.Config.Server.Port)
		return s.Server.ListenAndServeTLS(s.Config.Server.Certificate, s.Config.Server.PrivateKey)
	}
	telemetry.Log("http listener starting on port %d", s.Config.Server.Port)
	return s.Server.ListenAndServe()
}

// Shutdown stops the listener and closes the service.
func (s *MicropubService) Shutdown(ctx context.Context) {
	if err := s.Server.Shutdown(ctx); err != nil {
		telemetry.Error(err, "shutting down http server")
	}
	s.Close()
}

// NewService creates an http service to listen for Micropub requests
func NewService(cfg Config) *MicropubService {
	svc := &MicropubService{
		Config: cfg,
		router: mux.NewRouter(),
	}

	store := storage.NewDatabase(cfg.Database)
	if err := store.Open(); err != nil {
		telemetry.Error(err, "opening sqlite database [%s]", cfg.Database)
		return svc
	}
	svc.store = store

	verifier := NewTokenVerifier(cfg.TokenEndpoint)
	svc.endpoint = &MicropubEndpoint{
		config:   cfg,
		posts:    store,
		media:    NewMediaResolver(cfg, store, store, verifier),
		verifier: verifier,
	}

	svc.addHandlers()

	svc.Server = http.Server{
		Handler:      svc.router,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}
	return svc
}

type RequestLogger struct {
	Handler http.HandlerFunc
}

func (rl RequestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	headers := make([]string, 0)
	for k, v := range r.Header {
		s := fmt.Sprintf("%s: %s", k, strings.Join(v, ", "))
		headers = append(headers, s)
	}
	telemetry.Trace(strings.Join(headers, " | "))

	buf, err := io.ReadAll(r.Body)
	if err != nil {
		telemetry.Error(err, "error reading body")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(buf) > 0 {
		telemetry.Trace(string(buf))
	}
	r.Body = io.NopCloser(bytes.NewBuffer(buf))
	rl.Handler(w, r)
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "homeHandler")
	telemetry.Increment("home_requests", 1)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<html><title>micropub</title>
<body>
<p>This is a <a href="https://micropub.spec.indieweb.org/">Micropub</a> endpoint.
Point a Micropub client at /micropub to publish.</p>
</body>
</html>`)
}
