package session

import (
	"testing"

	"github.com/parleyhq/parley/pkg/chat"
)

func TestMigrate_EmptyState(t *testing.T) {
	t.Parallel()

	out := Migrate(State{}, chat.DefaultModelConfig())
	if out.Version != SchemaVersion {
		t.Fatalf("version = %v, want %v", out.Version, SchemaVersion)
	}
	if out.Sessions == nil {
		t.Fatal("sessions slice left nil")
	}
	if out.CurrentIndex != 0 {
		t.Fatalf("current = %d, want 0", out.CurrentIndex)
	}
}

func TestMigrate_V1RebuildForcesMemoryDefaults(t *testing.T) {
	t.Parallel()

	old := &chat.Session{
		ID:    "legacy-1",
		Topic: "Old Talk",
		Messages: []chat.Message{
			{ID: "1", Role: chat.RoleUser, Content: "hello"},
			{ID: "2", Role: chat.RoleAssistant, Content: "hi"},
		},
		Mask: chat.Mask{ModelConfig: chat.ModelConfig{
			SendMemory:                     false,
			HistoryMessageCount:            99,
			CompressMessageLengthThreshold: 7,
		}},
	}

	out := Migrate(State{Version: 1, Sessions: []*chat.Session{old}}, chat.DefaultModelConfig())
	if len(out.Sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(out.Sessions))
	}
	s := out.Sessions[0]

	if s.Topic != "Old Talk" {
		t.Errorf("topic = %q, want preserved", s.Topic)
	}
	if len(s.Messages) != 2 || s.Messages[0].Content != "hello" {
		t.Errorf("messages not preserved: %+v", s.Messages)
	}

	cfg := s.Mask.ModelConfig
	if !cfg.SendMemory {
		t.Error("SendMemory not forced on")
	}
	if cfg.HistoryMessageCount != 4 {
		t.Errorf("HistoryMessageCount = %d, want 4", cfg.HistoryMessageCount)
	}
	if cfg.CompressMessageLengthThreshold != 1000 {
		t.Errorf("CompressMessageLengthThreshold = %d, want 1000", cfg.CompressMessageLengthThreshold)
	}
}

func TestMigrate_V2RegeneratesIdentifiers(t *testing.T) {
	t.Parallel()

	state := State{Version: 2, Sessions: []*chat.Session{
		{ID: "100001", Messages: []chat.Message{{ID: "1"}, {ID: "2"}}},
		{ID: "100002", Messages: []chat.Message{{ID: "1"}}},
	}}

	out := Migrate(state, chat.DefaultModelConfig())

	seen := map[string]bool{}
	for _, s := range out.Sessions {
		if s.ID == "100001" || s.ID == "100002" {
			t.Error("session ID not regenerated")
		}
		if seen[s.ID] {
			t.Errorf("duplicate session ID %q", s.ID)
		}
		seen[s.ID] = true
		for _, m := range s.Messages {
			if m.ID == "1" || m.ID == "2" {
				t.Error("message ID not regenerated")
			}
			if seen[m.ID] {
				t.Errorf("duplicate message ID %q", m.ID)
			}
			seen[m.ID] = true
		}
	}
}

func TestMigrate_V3BackfillsInjectSystemPrompts(t *testing.T) {
	t.Parallel()

	explicit := chat.Bool(false)
	state := State{Version: 3, Sessions: []*chat.Session{
		{ID: "a", Mask: chat.Mask{ModelConfig: chat.ModelConfig{}}},
		{ID: "b", Mask: chat.Mask{ModelConfig: chat.ModelConfig{EnableInjectSystemPrompts: explicit}}},
	}}

	defaults := chat.DefaultModelConfig()
	out := Migrate(state, defaults)

	got := out.Sessions[0].Mask.ModelConfig.EnableInjectSystemPrompts
	if got == nil || *got != defaults.InjectSystemPrompts() {
		t.Errorf("absent field backfilled to %v, want global default", got)
	}

	kept := out.Sessions[1].Mask.ModelConfig.EnableInjectSystemPrompts
	if kept == nil || *kept != false {
		t.Error("explicit false overwritten by backfill")
	}
}

func TestMigrate_CurrentVersionUntouched(t *testing.T) {
	t.Parallel()

	s := chat.NewSession(chat.DefaultModelConfig())
	s.Messages = append(s.Messages, chat.NewMessage(chat.RoleUser, "hi"))
	originalSessionID := s.ID
	originalMessageID := s.Messages[0].ID

	out := Migrate(State{Version: SchemaVersion, Sessions: []*chat.Session{s}}, chat.DefaultModelConfig())

	if out.Sessions[0].ID != originalSessionID {
		t.Error("current-version migration regenerated session ID")
	}
	if out.Sessions[0].Messages[0].ID != originalMessageID {
		t.Error("current-version migration regenerated message ID")
	}
}

func TestMigrate_ClampsCurrentIndex(t *testing.T) {
	t.Parallel()

	state := State{
		Version:      SchemaVersion,
		Sessions:     []*chat.Session{chat.NewSession(chat.DefaultModelConfig())},
		CurrentIndex: 9,
	}
	out := Migrate(state, chat.DefaultModelConfig())
	if out.CurrentIndex != 0 {
		t.Fatalf("current = %d, want clamped to 0", out.CurrentIndex)
	}
}
