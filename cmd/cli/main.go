// cmd/cli/main.go
//
// Local chat loop against the full pipeline, reading from stdin. Useful for
// poking at the personality without a Discord token.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"server-slunt/internal/ai"
	"server-slunt/internal/behavior"
	"server-slunt/internal/config"
	"server-slunt/internal/memory"
	"server-slunt/internal/pipeline"
	"server-slunt/internal/relationship"
	"server-slunt/internal/rng"
	"server-slunt/internal/shaper"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()
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

	username := "local"
	if u := os.Getenv("USER"); u != "" {
		username = u
	}

	fmt.Println("chatting as", username, "- ctrl-d to quit")
	scanner := bufio.NewScanner(os.Stdin)
	var lastReply string
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		if lastReply != "" {
			p.Feedback(username, lastReply, text)
		}

		reply, err := p.Process(ctx, pipeline.Inbound{
			Platform: "coolhole",
			Username: username,
			Text:     text,
		})
		if err != nil {
			if errors.Is(err, pipeline.ErrNoReply) {
				lastReply = ""
				continue
			}
			log.Println("[ERR]", err)
			continue
		}
		fmt.Println(memory.BotName+":", reply)
		lastReply = reply
	}
}
