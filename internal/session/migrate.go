package session

import (
	"github.com/google/uuid"

	"github.com/parleyhq/parley/pkg/chat"
)

// SchemaVersion is the current persisted-state schema version.
// The version is a decimal; see Migrate for the upgrade steps.
const SchemaVersion = 3.1

// Migrate upgrades persisted state from any prior supported version to
// the current schema. It is idempotent and never fails: unknown or
// missing fields receive schema defaults.
//
// Steps:
//   - v<2   rebuild every session from scratch, preserving only topic and
//     messages and forcing the memory-related config defaults.
//   - v<3   regenerate all session and message identifiers (the ID scheme
//     changed to collision-resistant UUIDs).
//   - v<3.1 backfill EnableInjectSystemPrompts from the supplied global
//     default for sessions whose config lacks the field explicitly.
func Migrate(state State, defaults chat.ModelConfig) State {
	if state.Sessions == nil {
		state.Sessions = []*chat.Session{}
	}

	if state.Version < 2 {
		rebuilt := make([]*chat.Session, 0, len(state.Sessions))
		for _, old := range state.Sessions {
			if old == nil {
				continue
			}
			s := chat.NewSession(defaults)
			if old.Topic != "" {
				s.Topic = old.Topic
			}
			if old.Messages != nil {
				s.Messages = old.Messages
			}
			s.Mask.ModelConfig.SendMemory = true
			s.Mask.ModelConfig.HistoryMessageCount = 4
			s.Mask.ModelConfig.CompressMessageLengthThreshold = 1000
			rebuilt = append(rebuilt, s)
		}
		state.Sessions = rebuilt
	}

	if state.Version < 3 {
		for _, s := range state.Sessions {
			s.ID = uuid.NewString()
			for i := range s.Messages {
				s.Messages[i].ID = uuid.NewString()
			}
		}
	}

	if state.Version < 3.1 {
		for _, s := range state.Sessions {
			if s.Mask.ModelConfig.EnableInjectSystemPrompts == nil {
				s.Mask.ModelConfig.EnableInjectSystemPrompts = chat.Bool(defaults.InjectSystemPrompts())
			}
		}
	}

	if len(state.Sessions) > 0 {
		state.CurrentIndex = clamp(state.CurrentIndex, 0, len(state.Sessions)-1)
	} else {
		state.CurrentIndex = 0
	}
	state.Version = SchemaVersion
	return state
}
