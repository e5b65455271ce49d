// Package main boots the Price Hunter HTTP server.
package main

import (
	"context"
	"hash/fnv"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fairyhunter13/price-hunter/internal/config"
	"github.com/fairyhunter13/price-hunter/internal/events"
	httpapi "github.com/fairyhunter13/price-hunter/internal/http"
	"github.com/fairyhunter13/price-hunter/internal/obs"
	"github.com/fairyhunter13/price-hunter/internal/orchestrator"
	"github.com/fairyhunter13/price-hunter/internal/registry"
	"github.com/fairyhunter13/price-hunter/internal/storefront"
)

// buildAdapters wires one adapter per configured storefront. A storefront
// with STOREFRONT_<NAME>_URL set talks to that gateway over HTTP; the rest
// run as in-process simulators so the service works out of the box.
func buildAdapters(cfg config.Config) *storefront.Set {
	adapters := make([]storefront.Adapter, 0, len(cfg.Storefronts))
	for _, name := range cfg.Storefronts {
		envKey := "STOREFRONT_" + strings.ToUpper(name) + "_URL"
		if base := os.Getenv(envKey); base != "" {
			adapters = append(adapters, storefront.NewRemote(storefront.RemoteConfig{
				Name:    name,
				BaseURL: base,
			}, nil))
			continue
		}
		adapters = append(adapters, storefront.NewSim(name, demoCatalog(name),
			storefront.WithLatency(300*time.Millisecond)))
	}
	return storefront.NewSet(adapters...)
}

// demoCatalog prices a few well-known products with a deterministic
// per-storefront offset so searches produce distinct, repeatable winners.
func demoCatalog(name string) map[string]float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	offset := float64(h.Sum32() % 1500)
	return map[string]float64{
		"iphone 15":       79999 + offset,
		"milk 1l":         64 + offset/100,
		"atta 5kg":        289 + offset/50,
		"earbuds":         1299 + offset/10,
		"washing machine": 24990 + offset,
		"notebook a5":     99 + offset/100,
	}
}

func main() {
	cfg := config.Load()
	obs.InitLogger()
	obs.Logger.Info("service_starting")

	reg := registry.New(cfg.TaskRetention)
	bus := events.New(cfg.SubscriberBuffer)
	fronts := buildAdapters(cfg)
	orch := orchestrator.New(cfg, reg, bus, fronts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)
	reg.StartSweeper(ctx, cfg.SweepInterval)

	app := httpapi.NewApp(cfg, reg, bus, orch)
	mux := httpapi.NewRouter(app)

	// no WriteTimeout: /events responses stay open for the task's
	// lifetime
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr, "storefronts", strings.Join(fronts.Names(), ","))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()
	obs.Logger.Info("shutdown_drain_begin", "in_flight", orch.InFlight())

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if drained := orch.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout", "in_flight", orch.InFlight())
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	orch.Stop()
	obs.Logger.Info("service_stopped")
}
