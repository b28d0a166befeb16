package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
)

func main() {
	// Exemplo: injetando o middleware diretamente no seu webserver (sem proxy)
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// 5 pedidos por usuário a cada 60s (janela estrita)
	orders, err := infra.NewSlidingWindowLimiter(
		domain.SlidingWindowPolicy{MaxRequests: 5, Window: 60 * time.Second},
		infra.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("orders limiter", zap.Error(err))
	}
	// consulta de status aceita rajadas: 50 de uma vez, 5/s sustentado
	status, err := infra.NewTokenBucketLimiter(
		domain.TokenBucketPolicy{Capacity: 50, RefillRate: 5},
		infra.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("status limiter", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           routes(logger, orders, status),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(orders.Run(ctx))
	eg.Go(status.Run(ctx))
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	eg.Go(func() error {
		logger.Info("example server listening", zap.String("addr", addr), zap.Stringer("orders", orders), zap.Stringer("status", status))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
