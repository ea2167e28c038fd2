package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wadash/backend/internal/adapter"
	"github.com/wadash/backend/internal/config"
	"github.com/wadash/backend/internal/diag"
	"github.com/wadash/backend/internal/frontend"
	"github.com/wadash/backend/internal/gateway"
	"github.com/wadash/backend/internal/mock"
	"github.com/wadash/backend/internal/session"
	"github.com/wadash/backend/internal/stream"
	"github.com/wadash/backend/internal/web"
	"github.com/wadash/backend/internal/wweb"
)

func main() {
	mockMode := flag.Bool("mock", false, "Use a simulated WhatsApp client")
	configPath := flag.String("config", "", "Path to config file (also CONFIG env)")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	store := session.NewStore()
	broadcaster := stream.NewBroadcaster(store)

	var client wweb.Client
	if *mockMode {
		log.Println("Starting in mock mode")
		client = mock.NewClient()
	} else {
		log.Printf("Connecting to bridge at %s", cfg.Client.BridgeURL)
		client = wweb.NewRemote(cfg.Client.BridgeURL, wweb.RemoteOptions{
			ClientID:    cfg.Client.ClientID,
			Headless:    cfg.Client.Headless,
			BrowserPath: cfg.Client.BrowserPath,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		log.Printf("Client launch failed: %v", err)
		snap := store.Mutate(func(s *session.State) {
			s.Status = session.LaunchError
		})
		broadcaster.PublishState(snap)
	} else {
		go adapter.New(client, store, broadcaster).Run(ctx)
	}

	gw := gateway.New(client, store)
	srv := web.NewServer(cfg, store, broadcaster, gw, diag.NewCollector(), frontend.Handler())
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	stopped := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer close(stopped)
		<-sigCh
		log.Println("Shutting down...")

		// End open push streams first so Shutdown can drain handlers.
		broadcaster.Close()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		if err := client.Stop(shutdownCtx); err != nil {
			log.Printf("Client teardown: %v", err)
		}
		cancel()
	}()

	log.Printf("Server listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-stopped
}
