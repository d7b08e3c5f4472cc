package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lc/adns/internal/config"
	"github.com/lc/adns/internal/dnsengine"
	"github.com/lc/adns/internal/log"
	"github.com/lc/adns/internal/service"
	"github.com/lc/adns/pkg/api"
)

func main() {
	// load config
	provider := config.New()
	cfg, err := provider.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// build the query service over the default resolver engine
	svc, err := service.New(provider, func(rc config.ResolverConfig) (service.Engine, error) {
		return dnsengine.New(rc), nil
	})
	if err != nil {
		log.Fatalf("service error: %v", err)
	}

	// start the api over unix socket
	apiSrv := api.New(svc)
	sockPath := cfg.Socket.Path

	go func() {
		if err := apiSrv.ListenAndServe(sockPath); err != nil {
			log.Fatalf("api listen: %v", err)
		}
	}()

	// SIGHUP re-reads configuration; the snapshot applies on the next purge
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			svc.Reconfigure()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	<-sig
	log.Info("shutting down…")

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("api shutdown error: %v", err)
	}
	if err := svc.Close(); err != nil {
		log.Errorf("service shutdown error: %v", err)
	}
}
