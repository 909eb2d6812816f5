package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/backsoul/shikkhapro/pkg/client"
	"github.com/backsoul/shikkhapro/pkg/config"
	"github.com/backsoul/shikkhapro/pkg/handlers"
	"github.com/backsoul/shikkhapro/pkg/logging"
	"github.com/backsoul/shikkhapro/pkg/redis"
	"github.com/backsoul/shikkhapro/pkg/router"
	"github.com/backsoul/shikkhapro/pkg/services"
	"github.com/backsoul/shikkhapro/pkg/store"
	"github.com/backsoul/shikkhapro/pkg/validation"
	"github.com/backsoul/shikkhapro/pkg/websocket"
	"github.com/benbjohnson/clock"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	projectRoot := os.Getenv("SHIKKHA_ROOT")
	if projectRoot == "" {
		projectRoot = "."
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, projectRoot); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run arranca el gateway y bloquea hasta que ctx termina o el servidor falla
func run(ctx context.Context, projectRoot string) error {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return fmt.Errorf("error cargando configuración: %w", err)
	}

	log, level, err := logging.New(projectRoot, cfg.Logging)
	if err != nil {
		return fmt.Errorf("error iniciando el logger: %w", err)
	}
	defer log.Sync()

	cfg.OnChange(log, func(next *config.Config) {
		lvl, err := zapcore.ParseLevel(next.Logging.Level)
		if err != nil {
			log.Warn("Nivel de log inválido", zap.String("level", next.Logging.Level))
			return
		}
		level.SetLevel(lvl)
		log.Info("Nivel de log actualizado", zap.String("level", lvl.String()))
	})

	log.Info("Iniciando ShikkhaPro Gateway", zap.String("backend", cfg.Backend.BaseURL))

	log.Info("Conectando a Redis", zap.String("addr", cfg.Redis.Addr))
	redisClient, err := redis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("No se pudo conectar a Redis", zap.Error(err))
		return err
	}
	defer redisClient.Close()

	clk := clock.New()
	api := client.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, client.WithLogger(log))

	hub := websocket.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	sessionStore := store.NewStore(redisClient, cfg.Session.TTL, clk, log)
	sessionService := services.NewSessionService(sessionStore, api, clk, log)
	quizService := services.NewQuizService(redisClient, api, cfg.Cache.QuizTTL, log)
	attemptService := services.NewAttemptService(quizService, sessionService, api, hub, clk, cfg.Attempt.AutoSubmitTimeout, log)
	defer attemptService.CloseAll()

	cookie := handlers.SessionCookie{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.Secure,
		TTL:    cfg.Session.TTL,
	}
	validator := validation.New()

	handler := router.New(router.Handlers{
		Auth:    handlers.NewAuthHandler(sessionService, cookie, validator, log),
		Quiz:    handlers.NewQuizHandler(sessionService, quizService, cookie, validator, log),
		Attempt: handlers.NewAttemptHandler(sessionService, attemptService, hub, cookie, validator, cfg.Server.AllowedOrigin, log),
		Health:  handlers.NewHealthHandler(redisClient, quizService, attemptService, log),
	}, cfg.Server.Name, cfg.Server.AllowedOrigin, log)

	server := &fasthttp.Server{
		Handler: handler,
		Name:    cfg.Server.Name,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Servidor escuchando", zap.String("addr", cfg.Addr()))
		errCh <- server.ListenAndServe(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Error al iniciar el servidor", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		log.Info("Apagando servidor")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			log.Warn("Apagado forzado", zap.Error(err))
		}
	}
	return nil
}
