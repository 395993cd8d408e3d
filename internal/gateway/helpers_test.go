package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/parleyhq/parley/internal/ctxengine"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/token"
	"github.com/parleyhq/parley/pkg/chat"
)

// fakeProvider streams a fixed chunk sequence.
type fakeProvider struct {
	chunks []provider.StreamChunk
}

func (p *fakeProvider) Complete(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
	return provider.CompletionResponse{Content: "ok"}, nil
}

func (p *fakeProvider) Stream(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	ch := make(chan provider.StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *fakeProvider) ModelName() string { return "fake" }

// newTestGateway builds a gateway over a real store and a scripted
// provider, without task support.
func newTestGateway(t *testing.T, chunks ...provider.StreamChunk) (*Gateway, *session.Store, http.Handler) {
	t.Helper()

	toaster := NewUndoToaster()
	store := session.NewStore(session.Options{
		Defaults: chat.DefaultModelConfig(),
		Toaster:  toaster,
	})
	assembler := ctxengine.NewAssembler(token.NewCharEstimator(0), "en")
	service := session.NewService(store, &fakeProvider{chunks: chunks}, assembler, nil, nil, "en")

	g := New(Config{}, service, nil, nil, toaster, nil)
	return g, store, g.buildRouter()
}
