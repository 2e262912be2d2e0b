// Package http serves the handbook chat API over HTTP using gin.
package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fwojciec/handbook"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Defaults for Server options.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 180 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// DefaultAllowOrigins is the browser origin of the chat form in development.
var DefaultAllowOrigins = []string{"http://localhost:3000"}

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Server is the HTTP front end of an Asker.
type Server struct {
	ln     net.Listener
	server *http.Server
	router *gin.Engine

	asker   handbook.Asker
	catalog *handbook.Catalog

	addr            string
	allowOrigins    []string
	logger          *slog.Logger
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Defaults to DefaultAddr.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithAllowOrigins sets the origins allowed by CORS. A single "*" allows
// every origin. Defaults to DefaultAllowOrigins.
func WithAllowOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowOrigins = origins
	}
}

// WithLogger sets the logger used for access and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTimeouts sets the read and write timeouts of the HTTP server.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// NewServer creates a Server answering with asker and listing the
// documents in catalog.
func NewServer(asker handbook.Asker, catalog *handbook.Catalog, opts ...Option) *Server {
	s := &Server{
		asker:           asker,
		catalog:         catalog,
		addr:            DefaultAddr,
		allowOrigins:    DefaultAllowOrigins,
		logger:          slog.New(slog.DiscardHandler),
		readTimeout:     DefaultReadTimeout,
		writeTimeout:    DefaultWriteTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestID(), s.accessLog(), cors.New(s.corsConfig()))

	s.router.POST("/", s.handleChat)
	s.router.POST("/api/chat", s.handleChat)
	s.router.GET("/api/faculties", s.handleFaculties)
	s.router.GET("/healthz", s.handleHealth)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Open starts listening and serving in the background.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped", "err", err)
		}
	}()

	s.logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the address the server is listening on, or the configured
// address before Open.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Close gracefully shuts down the server, waiting for in-flight requests.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.allowOrigins) == 1 && s.allowOrigins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else if len(s.allowOrigins) == 0 {
		cfg.AllowOrigins = DefaultAllowOrigins
	} else {
		cfg.AllowOrigins = s.allowOrigins
	}
	return cfg
}

// requestID propagates or assigns the request identifier.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// accessLog writes one structured line per request.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(begin),
			"request_id", c.GetString(RequestIDHeader),
		)
	}
}
