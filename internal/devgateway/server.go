package devgateway

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/digimartpay/digipay-go/pkg/config"
)

type Server struct {
	Store      *Store
	Hub        *Hub
	Cfg        *config.Config
	Logger     zerolog.Logger
	Router     *gin.Engine
	httpServer *http.Server
}

func New(cfg *config.Config, store *Store, hub *Hub, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	return &Server{
		Store:  store,
		Hub:    hub,
		Cfg:    cfg,
		Logger: logger,
		Router: gin.New(),
	}
}

func (s *Server) SetupRouter() {
	handlers := NewHandlers(s.Store, s.Hub, s.Cfg.Server.JWTSecret, s.Logger)
	handlers.SetupHandlers(s.Router)
}

// Start serves until SIGINT or SIGTERM, then drains open requests. Read
// timeout stays short; writes get longer because the websocket upgrade rides
// the same server.
func (s *Server) Start() {
	s.SetupRouter()

	s.httpServer = &http.Server{
		Addr:         s.Cfg.Server.Host + ":" + s.Cfg.Server.Port,
		Handler:      s.Router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s.Logger.Info().Str("addr", s.httpServer.Addr).Msg("Dev gateway listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Fatal().Err(err).Msg("Dev gateway failed to listen")
		}
	}()

	<-stop
	s.Logger.Info().Msg("Stopping dev gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("Dev gateway did not drain in time")
		return
	}
	s.Logger.Info().Msg("Dev gateway stopped")
}
