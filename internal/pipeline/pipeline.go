// Package pipeline glues the knowledge store, relationship model, behavior
// computation, shaper, and completion provider into the per-message flow.
// One message is processed to completion before the next begins.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"server-slunt/internal/ai"
	"server-slunt/internal/behavior"
	"server-slunt/internal/config"
	"server-slunt/internal/memory"
	"server-slunt/internal/relationship"
	"server-slunt/internal/rng"
	"server-slunt/internal/shaper"
)

// ErrNoReply signals the bot decided not to (or could not) answer. Callers
// just drop the message.
var ErrNoReply = errors.New("pipeline: no reply")

// Inbound is one message from a platform adapter.
type Inbound struct {
	Platform string
	Username string
	Text     string
}

// Pipeline owns the per-message flow. Construct explicitly with New; no
// package-level state.
type Pipeline struct {
	Store         *memory.Store
	Relationship  *relationship.Model
	Behavior      *behavior.Computer
	Shaper        *shaper.Shaper
	Provider      ai.Provider
	Tables        *config.Tables
	Rand          rng.Source
	MaxAttempts   int
	ContextBudget int
	Clock         func() time.Time

	// Mental supplies optional external mood signals. Nil is fine.
	Mental func() *behavior.MentalState
}

// New wires a pipeline from already-built components.
func New(store *memory.Store, rel *relationship.Model, beh *behavior.Computer,
	sh *shaper.Shaper, provider ai.Provider, tables *config.Tables,
	rand rng.Source, maxAttempts int) *Pipeline {
	if tables == nil {
		tables = config.DefaultTables()
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Pipeline{
		Store:         store,
		Relationship:  rel,
		Behavior:      beh,
		Shaper:        sh,
		Provider:      provider,
		Tables:        tables,
		Rand:          rand,
		MaxAttempts:   maxAttempts,
		ContextBudget: 300,
		Clock:         time.Now,
	}
}

// Process runs one inbound message through the full flow and returns the
// shaped reply, or ErrNoReply when the bot stays quiet.
func (p *Pipeline) Process(ctx context.Context, in Inbound) (string, error) {
	p.Store.RecordInteraction(in.Username, in.Platform, in.Text)
	p.Store.PushContext(in.Platform, in.Username, in.Text)

	topic := p.Store.DetectCurrentTopic(in.Platform)
	p.Store.UpdateConversationState(in.Platform, topic)

	mods := p.Relationship.GetModifiers(in.Username, in.Platform, in.Text)
	if mods.ShouldBackOff {
		return "", ErrNoReply
	}

	state := p.Behavior.Compute(behavior.Input{
		Platform:     in.Platform,
		Username:     in.Username,
		Message:      in.Text,
		Relationship: &mods,
		Mental:       p.mental(),
		Now:          p.Clock(),
	})
	if !behavior.ShouldRespond(state, in.Text, &mods, p.Rand) {
		log.Printf("[PIPELINE] skipping reply to %s on %s", in.Username, in.Platform)
		return "", ErrNoReply
	}

	prompt := p.buildPrompt(in, state, mods)
	reply, err := p.generate(ctx, prompt, in.Platform, &state)
	if err != nil {
		return "", err
	}

	p.Store.PushContext(in.Platform, memory.BotName, reply)
	return reply, nil
}

// generate is the bounded generate-shape-retry loop. A shaper rejection
// triggers regeneration; attempts are capped so a pathological model can
// never loop forever.
func (p *Pipeline) generate(ctx context.Context, messages []ai.Message, platform string, state *behavior.State) (string, error) {
	var lastErr error
	params := state.ApplyToGenParams(ai.DefaultGenParams())

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		raw, err := p.Provider.Generate(ctx, messages, params)
		if err != nil {
			lastErr = err
			log.Printf("[PIPELINE] generate attempt %d: %v", attempt, err)
			continue
		}
		shaped, err := p.Shaper.Shape(raw, platform, state)
		if err != nil {
			lastErr = err
			log.Printf("[PIPELINE] shape attempt %d rejected", attempt)
			continue
		}
		return shaped, nil
	}
	if lastErr == nil {
		lastErr = ErrNoReply
	}
	return "", fmt.Errorf("%w: %v", ErrNoReply, lastErr)
}

func (p *Pipeline) mental() *behavior.MentalState {
	if p.Mental == nil {
		return nil
	}
	return p.Mental()
}

// buildPrompt assembles the system prompt and chat turn. Context goes in
// budgeted: the assembler guarantees the ceiling, the target length guides
// the model toward platform-sized replies.
func (p *Pipeline) buildPrompt(in Inbound, state behavior.State, mods relationship.Modifiers) []ai.Message {
	contextBlock := p.Store.RelevantContext(memory.ContextRequest{
		Platform: in.Platform,
		Username: in.Username,
		Message:  in.Text,
		MaxChars: p.ContextBudget,
		Rand:     p.Rand,
	})

	target := state.ResponseLengthTarget(p.Tables, in.Platform)

	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(memory.BotName)
	b.WriteString(", a chat regular. Reply in at most ")
	fmt.Fprintf(&b, "%d words and %d sentences.", target.Words, target.Sentences)
	if line := state.ContextString(); line != "" {
		b.WriteString(" ")
		b.WriteString(line)
	}
	if line := p.Relationship.ContextString(in.Username, mods, 120); line != "" {
		b.WriteString(" ")
		b.WriteString(line)
	}
	if contextBlock != "" {
		b.WriteString("\n\n")
		b.WriteString(contextBlock)
	}

	return []ai.Message{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: in.Username + ": " + in.Text},
	}
}

// Feedback lets adapters report the user's next message as a reaction to the
// bot's previous reply, closing the affinity learning loop.
func (p *Pipeline) Feedback(username, botResponse, userReaction string) {
	p.Relationship.LearnFromInteraction(username, botResponse, userReaction)
}
