package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"surfsup-server/internal/cache"
	"surfsup-server/internal/config"
	db "surfsup-server/internal/db"
	httpapi "surfsup-server/internal/httpapi"
	"surfsup-server/internal/modules/climate"
	climateviews "surfsup-server/internal/modules/climate/views"
	"surfsup-server/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"dbConnMaxLifetime", cfg.ConnMaxLifetime,
		"dbQueryTimeout", cfg.QueryTimeout,
		"cacheEnabled", cfg.CacheEnabled(),
		"mqttBroker", cfg.MQTTBroker,
		"mqttTopic", cfg.MQTTTopic,
		"rateLimitRPS", cfg.RateLimitRPS,
	)

	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	var ok int
	err = dbConn.QueryRowContext(ctx, `SELECT 1`).Scan(&ok)
	if err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	slog.Info("database connection successful")

	if err := climateviews.LoadTemplates(); err != nil {
		return err
	}

	health := httpapi.HealthDeps{DB: dbConn}
	deps := climate.Deps{
		DB:           dbConn,
		Driver:       cfg.Driver,
		QueryTimeout: cfg.QueryTimeout,
		Cache:        cache.Nop{},
		CacheTTL:     cfg.CacheTTL,
		Logger:       logger,
	}

	if cfg.CacheEnabled() {
		redisCache, err := cache.NewRedis(ctx, cfg)
		if err != nil {
			// The cache only saves work; serve straight from the store without it.
			slog.Warn("redis unavailable (continuing without cache)", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer func() {
				if err := redisCache.Close(); err != nil {
					slog.Error("redis close", "error", err)
				}
			}()
			deps.Cache = redisCache
			health.Cache = redisCache
			slog.Info("result cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		}
	}

	var subscriber *mqtt.Subscriber
	if cfg.MQTTEnabled() {
		subscriber, err = mqtt.NewSubscriber(cfg, logger)
		if err != nil {
			return err
		}
		// The handler must be set before Connect: the broker may deliver right after CONNACK.
		deps.Refresh = subscriber
		health.MQTT = subscriber
	}

	mux := httpapi.NewMux(health)
	climate.RegisterFeature(mux, deps)

	if subscriber != nil {
		// Short timeout so an unreachable broker does not block startup; auto-reconnect keeps trying.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if subscriber != nil {
		slog.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
