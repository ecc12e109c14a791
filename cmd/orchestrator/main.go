// Command orchestrator runs the cross-chain payment-and-execution service:
// quote issuance, commit, webhook ingestion, retry, and settlement
// reconciliation, fronted by its HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/chigozirigeorge/omnixec-sub000/internal/bootstrap"
	"github.com/chigozirigeorge/omnixec-sub000/internal/config"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		host, port, err := splitAddr(*addr)
		if err != nil {
			log.Fatalf("parse -addr: %v", err)
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}

	rootCtx := context.Background()

	app, err := bootstrap.New(rootCtx, cfg)
	if err != nil {
		log.Fatalf("initialize application: %v", err)
	}

	if err := app.Start(rootCtx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	app.Log.WithField("addr", addrString(cfg)).Info("orchestrator started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

func addrString(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}

func splitAddr(addr string) (host string, port int, err error) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	portNum, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", p, err)
	}
	return h, portNum, nil
}
