package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fieldpump/internal/game"
	"fieldpump/internal/server"
)

func main() {
	var (
		addr    = flag.String("addr", ":8080", "listen address")
		logFile = flag.String("log", "fieldpump.log", "log file path (empty for stderr)")
	)
	flag.Parse()
	if env := os.Getenv("PORT"); env != "" {
		*addr = ":" + env
	}

	log, err := server.NewLogger(*logFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	metrics := &server.Metrics{}
	bc := server.NewBroadcaster(metrics)
	reg := server.NewRegistry(bc, metrics, log)
	maps := game.NewDemoMapService()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS(reg, metrics, log))
	mux.HandleFunc("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/maps/", func(w http.ResponseWriter, r *http.Request) {
		mapID := strings.TrimPrefix(r.URL.Path, "/api/maps/")
		m, err := maps.Map(mapID)
		if err != nil {
			http.Error(w, "invalid map id", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m)
	})

	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Infof("FieldPump server listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
}
