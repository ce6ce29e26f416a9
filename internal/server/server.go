package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/config"
	"github.com/region23/desco-balance-bot/internal/middleware"
	"github.com/region23/desco-balance-bot/pkg/metrics"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"
	webhookPath = "/webhook"

	secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// UpdateHandler обрабатывает обновления Telegram
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update)
}

// Server представляет HTTP сервер с middleware
type Server struct {
	httpServer    *http.Server
	config        *config.Config
	logger        *zap.Logger
	rateLimiter   *middleware.RateLimiter
	healthChecker *HealthChecker
	updates       UpdateHandler
	telegramBot   *tgbot.Bot
}

// New создает новый HTTP сервер. updates может быть nil в режиме polling:
// тогда /webhook не регистрируется.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *HealthChecker,
	updates UpdateHandler,
	telegramBot *tgbot.Bot,
) *Server {
	s := &Server{
		config:        cfg,
		logger:        logger,
		rateLimiter:   middleware.NewRateLimiter(100, time.Minute, logger),
		healthChecker: healthChecker,
		updates:       updates,
		telegramBot:   telegramBot,
	}

	s.httpServer = &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        s.setupRoutes(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s
}

// Handler возвращает корневой обработчик со всеми middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes настраивает маршруты с middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(healthPath, s.healthChecker.HealthHandler)
	mux.Handle(metricsPath, promhttp.Handler())
	if s.updates != nil {
		mux.HandleFunc(webhookPath, s.handleWebhook)
	}

	// Последний добавленный middleware выполняется первым
	var h http.Handler = mux
	h = middleware.Prometheus(healthPath, metricsPath, webhookPath)(h)
	h = middleware.RateLimit(s.rateLimiter)(h)
	h = securityHeaders(h)

	return h
}

// handleWebhook обрабатывает Telegram webhook
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if secret := s.config.Telegram.WebhookSecret; secret != "" {
		got := r.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			s.logger.Warn("Webhook secret mismatch", zap.String("remote_addr", r.RemoteAddr))
			metrics.RecordError("http", "webhook_unauthorized")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var update tgmodels.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&update); err != nil {
		s.logger.Error("Failed to decode Telegram update", zap.Error(err))
		metrics.RecordError("http", "webhook_decode")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	s.updates.HandleUpdate(ctx, s.telegramBot, &update)

	s.logger.Debug("Webhook processed",
		zap.Int64("update_id", update.ID),
		zap.Duration("duration", time.Since(start)))

	w.WriteHeader(http.StatusOK)
}

// Start запускает сервер и блокируется до отмены ctx
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Close()
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown корректно завершает работу сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s.rateLimiter.Close()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during server shutdown", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
