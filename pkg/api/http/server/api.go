package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/voidshard/harvester/pkg/api"
	"github.com/voidshard/harvester/pkg/api/http/common"
	"github.com/voidshard/harvester/pkg/structs"
)

const (
	wait = 30 * time.Second
)

type Server struct {
	addr       string
	debug      bool
	svc        api.API
	log        *zap.SugaredLogger
	exit       chan struct{}
	httpserver *http.Server
}

// Handler builds the router serving svc.
func (s *Server) Handler(svc api.API) http.Handler {
	s.svc = svc

	router := mux.NewRouter()
	router.HandleFunc(common.API_HEALTH, s.Health).Methods(http.MethodGet)
	router.HandleFunc(common.API_JOBS, s.Jobs).Methods(http.MethodGet)
	router.HandleFunc(common.API_CANCEL, s.Cancel).Methods(http.MethodPatch)
	router.HandleFunc(common.API_JOB, s.Clear).Methods(http.MethodDelete)
	router.HandleFunc(common.API_SCHEDULE, s.Schedule).Methods(http.MethodPost)
	router.HandleFunc(common.API_DEFINITIONS, s.Definitions).Methods(http.MethodGet)
	router.HandleFunc(common.API_INSTANCES, s.Instances).Methods(http.MethodGet)

	if s.debug {
		s.log.Debug("debug enabled, adding per-request logging middleware")
		router.Use(loggingMiddleware(s.log))
	}
	return router
}

// ServeForever serves the API until Close is called.
func (s *Server) ServeForever(svc api.API) error {
	s.httpserver = &http.Server{
		Handler:      s.Handler(svc),
		Addr:         s.addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Infow("listening", "addr", s.httpserver.Addr)
		if err := s.httpserver.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-s.exit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return s.httpserver.Shutdown(ctx)
}

func (s *Server) Jobs(w http.ResponseWriter, r *http.Request) {
	q := &api.JobQuery{}
	err := unmarshalJobQuery(w, r, q)
	if err != nil {
		return
	}

	items, err := s.svc.Jobs(q)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	if s.debug {
		s.log.Debugw("returned jobs", "url", r.URL.String(), "items", len(items))
	}
	writeJson(w, items)
}

func (s *Server) Cancel(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Cancel(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, &common.UpdateResponse{Updated: 1})
}

func (s *Server) Clear(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Clear(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, &common.UpdateResponse{Updated: 1})
}

func (s *Server) Schedule(w http.ResponseWriter, r *http.Request) {
	req := &api.ScheduleRequest{}
	err := unmarshalJson(w, r, req)
	if err != nil {
		return
	}
	if err = req.Validate(); err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}

	in, err := s.svc.Schedule(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, in)
}

func (s *Server) Definitions(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	items, err := s.svc.Definitions(r.Context(), activeOnly)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	writeJson(w, items)
}

func (s *Server) Instances(w http.ResponseWriter, r *http.Request) {
	q := &structs.Query{}
	err := unmarshalQuery(w, r, q)
	if err != nil {
		return
	}

	items, err := s.svc.Instances(r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), mapError(err))
		return
	}
	if s.debug {
		s.log.Debugw("returned instances", "url", r.URL.String(), "items", len(items))
	}
	writeJson(w, items)
}

func (s *Server) Close() error {
	select {
	case <-s.exit:
	default:
		close(s.exit)
	}
	return nil
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJson(w, map[string]bool{"ok": true})
}

func NewServer(addr string, debug bool, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		addr:  addr,
		debug: debug,
		log:   log.Named("api"),
		exit:  make(chan struct{}),
	}
}

func writeJson(w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(obj)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
