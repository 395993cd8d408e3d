package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/ctxengine"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/token"
	"github.com/parleyhq/parley/pkg/chat"
)

// scriptedProvider streams a fixed chunk sequence.
type scriptedProvider struct {
	chunks    []provider.StreamChunk
	streamErr error
	requests  []provider.CompletionRequest
}

func (p *scriptedProvider) Complete(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	return provider.CompletionResponse{Content: "done"}, nil
}

func (p *scriptedProvider) Stream(_ context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	p.requests = append(p.requests, req)
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	ch := make(chan provider.StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) ModelName() string { return "scripted" }

// signalSummarizer reports turn notifications on a channel.
type signalSummarizer struct {
	fired chan string
}

func (s *signalSummarizer) OnAssistantTurn(_ context.Context, sessionID string) {
	s.fired <- sessionID
}

func newTestService(p provider.Provider, summarizer Summarizer) (*Service, *Store) {
	store := newTestStore()
	assembler := ctxengine.NewAssembler(token.NewCharEstimator(0), "en")
	svc := NewService(store, p, assembler, summarizer, nil, "en")
	return svc, store
}

func TestService_SendStreamsIntoAssistantMessage(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{chunks: []provider.StreamChunk{
		{Content: "Hel"},
		{Content: "lo "},
		{Content: "there"},
	}}
	summarizer := &signalSummarizer{fired: make(chan string, 1)}
	svc, store := newTestService(p, summarizer)

	var deltas []string
	userID, assistantID := svc.Send(context.Background(), "hi", func(_, content string) {
		deltas = append(deltas, content)
	})

	cur := store.Current()
	if len(cur.Messages) != 2 {
		t.Fatalf("session holds %d messages, want 2", len(cur.Messages))
	}
	if cur.Messages[0].ID != userID || cur.Messages[0].Role != chat.RoleUser {
		t.Fatalf("first message = %+v, want the user turn", cur.Messages[0])
	}

	assistant := cur.Messages[1]
	if assistant.ID != assistantID {
		t.Fatalf("assistant ID mismatch")
	}
	if assistant.Content != "Hello there" {
		t.Fatalf("assistant content = %q, want %q", assistant.Content, "Hello there")
	}
	if assistant.Streaming {
		t.Error("assistant message still flagged streaming after completion")
	}
	if assistant.IsError {
		t.Error("clean turn flagged as error")
	}

	// Deltas are cumulative.
	want := []string{"Hel", "Hello ", "Hello there"}
	if len(deltas) != len(want) {
		t.Fatalf("got %d deltas, want %d", len(deltas), len(want))
	}
	for i := range want {
		if deltas[i] != want[i] {
			t.Errorf("delta %d = %q, want %q", i, deltas[i], want[i])
		}
	}

	select {
	case id := <-summarizer.fired:
		if id != cur.ID {
			t.Errorf("summarizer notified for session %q, want %q", id, cur.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("summarizer not notified after completed turn")
	}
}

func TestService_SendRequestContainsAssembledContext(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{chunks: []provider.StreamChunk{{Content: "ok"}}}
	svc, store := newTestService(p, nil)

	store.UpdateCurrent(func(s *chat.Session) {
		s.Messages = append(s.Messages, chat.NewMessage(chat.RoleUser, "earlier question"))
	})

	svc.Send(context.Background(), "new question", nil)

	if len(p.requests) != 1 {
		t.Fatalf("provider saw %d requests, want 1", len(p.requests))
	}
	msgs := p.requests[0].Messages
	if len(msgs) == 0 {
		t.Fatal("request carries no messages")
	}
	if msgs[0].Role != provider.MessageRoleSystem {
		t.Errorf("first request message role = %q, want system prompt", msgs[0].Role)
	}
	last := msgs[len(msgs)-1]
	if last.Role != provider.MessageRoleUser || !strings.Contains(last.Content, "new question") {
		t.Errorf("last request message = %+v, want the fresh user turn", last)
	}
	// The streaming placeholder must not be sent upstream.
	for _, m := range msgs {
		if m.Role == provider.MessageRoleAssistant && m.Content == "" {
			t.Error("empty assistant placeholder leaked into the request")
		}
	}
}

func TestService_SendStreamErrorRendersIntoMessage(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{chunks: []provider.StreamChunk{
		{Content: "partial"},
		{Err: errors.New("upstream exploded")},
	}}
	svc, store := newTestService(p, nil)

	_, assistantID := svc.Send(context.Background(), "hi", nil)

	cur := store.Current()
	assistant := cur.Messages[len(cur.Messages)-1]
	if assistant.ID != assistantID {
		t.Fatal("assistant ID mismatch")
	}
	if !assistant.IsError {
		t.Error("failed turn not flagged as error")
	}
	if assistant.Streaming {
		t.Error("failed turn still flagged streaming")
	}
	if !strings.Contains(assistant.Content, "upstream exploded") {
		t.Errorf("error content = %q, want the failure reason", assistant.Content)
	}
}

func TestService_SendAbortKeepsPartialContent(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{chunks: []provider.StreamChunk{
		{Content: "partial answer"},
		{Err: context.Canceled},
	}}
	summarizer := &signalSummarizer{fired: make(chan string, 1)}
	svc, store := newTestService(p, summarizer)

	svc.Send(context.Background(), "hi", nil)

	cur := store.Current()
	assistant := cur.Messages[len(cur.Messages)-1]
	if assistant.IsError {
		t.Error("aborted turn flagged as error")
	}
	if assistant.Streaming {
		t.Error("aborted turn still flagged streaming")
	}
	if assistant.Content != "partial answer" {
		t.Errorf("content = %q, want partial kept", assistant.Content)
	}

	select {
	case <-summarizer.fired:
		t.Fatal("summarizer notified for an aborted turn")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestService_SendProviderRefusalRendersError(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{streamErr: errors.New("connect refused")}
	svc, store := newTestService(p, nil)

	svc.Send(context.Background(), "hi", nil)

	cur := store.Current()
	assistant := cur.Messages[len(cur.Messages)-1]
	if !assistant.IsError || !strings.Contains(assistant.Content, "connect refused") {
		t.Fatalf("refused stream not rendered as error: %+v", assistant)
	}
}

func TestService_PrepareTaskTurn(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(&scriptedProvider{}, nil)

	sessionID, messageID := svc.PrepareTaskTurn("IMAGINE::a red bicycle")

	got, ok := store.Get(sessionID)
	if !ok {
		t.Fatal("session not found")
	}
	if len(got.Messages) != 2 {
		t.Fatalf("session holds %d messages, want user turn plus placeholder", len(got.Messages))
	}
	if got.Messages[0].Content != "IMAGINE::a red bicycle" {
		t.Errorf("user message = %q", got.Messages[0].Content)
	}

	placeholder := got.Messages[1]
	if placeholder.ID != messageID {
		t.Fatal("placeholder ID mismatch")
	}
	if placeholder.Kind != chat.KindGenerationTask {
		t.Errorf("placeholder kind = %q, want generation task", placeholder.Kind)
	}
	if !placeholder.Streaming {
		t.Error("placeholder not flagged streaming")
	}
	if placeholder.Task == nil {
		t.Error("placeholder carries no task info")
	}
}
