// Command orchestrator runs the VoiceHive Hotels control-plane
// orchestrator: no HTTP surface of its own, just the wired package
// graph (internal/app) and its background supervisor loops.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/app"
	"github.com/voicehive-hotels/orchestrator/pkg/config"
)

func main() {
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env)")
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if trimmed := strings.TrimSpace(*configPath); trimmed != "" {
		cfg, err = config.LoadFile(trimmed)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	cfg.Database.DSN = resolveDSN(*dsn, cfg)

	rootCtx := context.Background()
	orchestrator, err := app.New(rootCtx, cfg)
	if err != nil {
		log.Fatalf("initialise orchestrator: %v", err)
	}

	orchestrator.Start(rootCtx)
	log.Printf("voicehive orchestrator started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownDone := make(chan struct{})
	go func() {
		orchestrator.Stop()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		log.Printf("voicehive orchestrator stopped cleanly")
	case <-time.After(10 * time.Second):
		log.Printf("voicehive orchestrator shutdown timed out")
	}
}

// resolveDSN gives the -dsn flag precedence over whatever config.Load
// already resolved (file then environment).
func resolveDSN(flagDSN string, cfg *config.Config) string {
	if trimmed := strings.TrimSpace(flagDSN); trimmed != "" {
		return trimmed
	}
	if cfg != nil {
		return cfg.Database.DSN
	}
	return ""
}
