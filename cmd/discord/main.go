// cmd/discord/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"server-slunt/internal/ai"
	"server-slunt/internal/behavior"
	"server-slunt/internal/config"
	"server-slunt/internal/discord"
	"server-slunt/internal/memory"
	"server-slunt/internal/pipeline"
	"server-slunt/internal/relationship"
	"server-slunt/internal/rng"
	"server-slunt/internal/shaper"
)

func main() {
	log.Println("[INFO] Starting Slunt...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()
	if cfg.DiscordToken == "" {
		log.Fatal("[ERR] DISCORD_TOKEN is required")
	}

	tables, err := config.LoadTables(cfg.TablesPath)
	if err != nil {
		log.Fatal(err)
	}

	rand := rng.Default(time.Now().UnixNano())

	store := memory.NewStore(cfg.DataPath, tables, memory.OptionsFromConfig(cfg))
	defer store.Close()
	store.StartAutoSave(ctx)

	provider, err := ai.NewProvider(cfg)
	if err != nil {
		log.Fatal(err)
	}
	breaker := ai.NewBreaker(provider, rand, 0, 0)

	rel := relationship.New(store, tables, rand)
	beh := behavior.New(tables, rand)
	sh := shaper.New(tables, rand)

	p := pipeline.New(store, rel, beh, sh, breaker, tables, rand, cfg.MaxGenerateAttempts)
	p.ContextBudget = cfg.ContextBudget

	errCh := make(chan error, 1)
	go func() {
		errCh <- discord.StartBot(ctx, cfg, p)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...", s)
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Println("[ERR] Discord bot error:", err)
		}
		cancel()
	}

	log.Println("[INFO] Discord bot exited cleanly")
}
