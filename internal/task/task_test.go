package task

import (
	"errors"
	"testing"
)

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"imagine ok", Request{Action: ActionImagine, Prompt: "a red bicycle"}, nil},
		{"imagine blank prompt", Request{Action: ActionImagine, Prompt: "   "}, ErrEmptyPrompt},
		{"describe one image", Request{Action: ActionDescribe, Images: []string{"b64"}}, nil},
		{"blend two images", Request{Action: ActionBlend, Images: []string{"a", "b"}}, nil},
		{"blend five images", Request{Action: ActionBlend, Images: []string{"a", "b", "c", "d", "e"}}, nil},
		{"blend one image", Request{Action: ActionBlend, Images: []string{"a"}}, ErrBlendImageCount},
		{"blend six images", Request{Action: ActionBlend, Images: []string{"a", "b", "c", "d", "e", "f"}}, ErrBlendImageCount},
		{"upscale ok", Request{Action: ActionUpscale, Index: 1, TargetTaskID: "t1"}, nil},
		{"upscale missing task", Request{Action: ActionUpscale, Index: 1}, ErrMissingTarget},
		{"variation zero index", Request{Action: ActionVariation, Index: 0, TargetTaskID: "t1"}, ErrMissingTarget},
		{"reroll ok", Request{Action: ActionReroll, Index: 1, TargetTaskID: "t1"}, nil},
		{"unknown action", Request{Action: "ZOOM"}, ErrUnknownAction},
		{"empty action", Request{}, ErrUnknownAction},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	t.Run("imagine with prompt", func(t *testing.T) {
		t.Parallel()
		req, err := ParseCommand("IMAGINE::a red bicycle", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Action != ActionImagine || req.Prompt != "a red bicycle" {
			t.Fatalf("req = %+v", req)
		}
	})

	t.Run("prompt keeps embedded separators", func(t *testing.T) {
		t.Parallel()
		req, err := ParseCommand("IMAGINE::scope::resolution test", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Prompt != "scope::resolution test" {
			t.Fatalf("prompt = %q", req.Prompt)
		}
	})

	t.Run("lowercase action accepted", func(t *testing.T) {
		t.Parallel()
		req, err := ParseCommand("imagine::something", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Action != ActionImagine {
			t.Fatalf("action = %q", req.Action)
		}
	})

	t.Run("upscale with target", func(t *testing.T) {
		t.Parallel()
		req, err := ParseCommand("UPSCALE::2::1689231405853400", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Index != 2 || req.TargetTaskID != "1689231405853400" {
			t.Fatalf("req = %+v", req)
		}
	})

	t.Run("upscale missing arguments", func(t *testing.T) {
		t.Parallel()
		if _, err := ParseCommand("UPSCALE::2", nil); !errors.Is(err, ErrMissingTarget) {
			t.Fatalf("err = %v, want %v", err, ErrMissingTarget)
		}
	})

	t.Run("upscale bad index", func(t *testing.T) {
		t.Parallel()
		if _, err := ParseCommand("UPSCALE::two::t1", nil); !errors.Is(err, ErrMissingTarget) {
			t.Fatalf("err = %v, want %v", err, ErrMissingTarget)
		}
	})

	t.Run("blend takes attached images", func(t *testing.T) {
		t.Parallel()
		req, err := ParseCommand("BLEND", []string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(req.Images) != 3 {
			t.Fatalf("images = %v", req.Images)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		t.Parallel()
		if _, err := ParseCommand("EXPLODE::now", nil); !errors.Is(err, ErrUnknownAction) {
			t.Fatalf("err = %v, want %v", err, ErrUnknownAction)
		}
	})
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[string]bool{
		StatusSuccess:    true,
		StatusFailure:    true,
		StatusSubmitted:  false,
		StatusInProgress: false,
		StatusNotStart:   false,
		"SOMETHING_NEW":  false,
	}
	for status, want := range terminal {
		if got := IsTerminal(status); got != want {
			t.Errorf("IsTerminal(%q) = %v, want %v", status, got, want)
		}
	}
}
