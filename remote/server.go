package remote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zeu5/ur-rl-env/types"
)

// Server exposes a single session over HTTP. Calls are serialised: the
// session is driven by one client at a time.
type Server struct {
	Addr string
	ID   string

	ctx     context.Context
	server  *http.Server
	logger  *slog.Logger
	lock    *sync.Mutex
	session types.Session
	done    chan struct{}
}

func NewServer(ctx context.Context, addr string, session types.Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Addr:    addr,
		ID:      uuid.NewString(),
		ctx:     ctx,
		logger:  logger,
		lock:    new(sync.Mutex),
		session: session,
		done:    make(chan struct{}),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(routeSession, s.handleSession)
	r.POST(routeReset, s.handleReset)
	r.POST(routeStep, s.handleStep)
	r.GET(routeObservationSpec, s.handleObservationSpec)
	r.GET(routeActionSpec, s.handleActionSpec)
	r.POST(routeClose, s.handleClose)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens in the background until the server context is done, then
// shuts down and closes Done
func (s *Server) Start() {
	go func() {
		s.logger.Info("serving session", "addr", s.Addr, "id", s.ID)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("session server stopped", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("session server shutdown", "err", err)
		}
		close(s.done)
	}()
}

func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	s.logger.Warn("session request failed", "path", c.FullPath(), "err", err)
	c.JSON(status, errorResponse{Error: err.Error()})
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, SessionInfo{ID: s.ID})
}

func (s *Server) handleReset(c *gin.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	t, err := s.session.Reset(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleStep(c *gin.Context) {
	req := StepRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	t, err := s.session.Step(c.Request.Context(), req.Action)
	if err != nil {
		s.fail(c, http.StatusConflict, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleObservationSpec(c *gin.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	specs, err := s.session.ObservationSpec(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ObservationSpecResponse{Specs: specs})
}

func (s *Server) handleActionSpec(c *gin.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	spec, err := s.session.ActionSpec(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ActionSpecResponse{Spec: spec})
}

// closing ends the current episode; the server keeps serving so the robot
// can be picked up by the next client
func (s *Server) handleClose(c *gin.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.session.Close(); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
