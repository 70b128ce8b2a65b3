// Package discord is the thin Discord adapter: it forwards chat messages
// into the pipeline and posts the shaped replies back.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"server-slunt/internal/config"
	"server-slunt/internal/pipeline"
)

// Bot is the Discord front end.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	pipeline *pipeline.Pipeline

	mu        sync.Mutex
	lastReply map[string]string // username -> last bot reply, for feedback
}

// StartBot connects and blocks until ctx is done.
func StartBot(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) error {
	b := &Bot{
		cfg:       cfg,
		pipeline:  p,
		lastReply: make(map[string]string),
	}
	if err := b.run(ctx, cfg.DiscordToken); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

func (b *Bot) run(ctx context.Context, token string) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, closing Discord session")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[INFO] connected as %s", r.User.Username)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}
	username := m.Author.Username

	// Previous bot line plus this message is one learning sample.
	b.mu.Lock()
	if prev, ok := b.lastReply[username]; ok {
		b.pipeline.Feedback(username, prev, text)
		delete(b.lastReply, username)
	}
	b.mu.Unlock()

	reply, err := b.pipeline.Process(context.Background(), pipeline.Inbound{
		Platform: "discord",
		Username: username,
		Text:     text,
	})
	if err != nil {
		if !errors.Is(err, pipeline.ErrNoReply) {
			log.Printf("[ERR] process message: %v", err)
		}
		return
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		log.Printf("[ERR] send message: %v", err)
		return
	}
	b.mu.Lock()
	b.lastReply[username] = reply
	b.mu.Unlock()
}
