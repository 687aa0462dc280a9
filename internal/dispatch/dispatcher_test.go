package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/upstream"
)

// stubClient records the models it was called with and fails on demand.
type stubClient struct {
	calls   []string
	failFor map[string]error
	text    string
}

func (s *stubClient) Complete(_ context.Context, req upstream.Request) (*upstream.Completion, error) {
	s.calls = append(s.calls, req.Model)
	if err, ok := s.failFor[req.Model]; ok {
		return nil, err
	}
	return &upstream.Completion{Text: s.text, Model: req.Model, TokensIn: 10, TokensOut: 20}, nil
}

func testDispatcher(anthropic, openai *stubClient) *Dispatcher {
	return NewDispatcher(anthropic, openai, slog.New(slog.DiscardHandler))
}

func TestDispatch_PrimarySucceeds(t *testing.T) {
	anthropic := &stubClient{text: "ok"}
	openai := &stubClient{}
	d := testDispatcher(anthropic, openai)

	res, err := d.Dispatch(context.Background(), Request{
		Primary:  "claude-sonnet-4-5",
		Fallback: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.UsedFallback {
		t.Error("fallback flagged on primary success")
	}
	if res.ModelUsed != "claude-sonnet-4-5" {
		t.Errorf("model = %s", res.ModelUsed)
	}
	if len(openai.calls) != 0 {
		t.Errorf("fallback client called on primary success: %v", openai.calls)
	}
}

func TestDispatch_FallbackOnPrimaryFailure(t *testing.T) {
	anthropic := &stubClient{failFor: map[string]error{"claude-sonnet-4-5": errors.New("overloaded")}}
	openai := &stubClient{text: "ok"}
	d := testDispatcher(anthropic, openai)

	res, err := d.Dispatch(context.Background(), Request{
		Primary:  "claude-sonnet-4-5",
		Fallback: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !res.UsedFallback {
		t.Error("fallback not flagged")
	}
	if res.ModelUsed != "gpt-4o" {
		t.Errorf("model = %s", res.ModelUsed)
	}
	if len(anthropic.calls) != 1 || len(openai.calls) != 1 {
		t.Errorf("calls = %v / %v, want one each", anthropic.calls, openai.calls)
	}
}

func TestDispatch_BothFailReturnsFallbackError(t *testing.T) {
	anthropic := &stubClient{failFor: map[string]error{"claude-sonnet-4-5": errors.New("primary down")}}
	openai := &stubClient{failFor: map[string]error{"gpt-4o": errors.New("fallback down")}}
	d := testDispatcher(anthropic, openai)

	_, err := d.Dispatch(context.Background(), Request{
		Primary:  "claude-sonnet-4-5",
		Fallback: "gpt-4o",
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %T", err)
	}
	if gwErr.Type != domain.ErrorTypeUpstream {
		t.Errorf("type = %s, want upstream", gwErr.Type)
	}
	// The last attempt's detail is the one surfaced.
	if gwErr.Message != "fallback down" {
		t.Errorf("message = %q, want the fallback failure", gwErr.Message)
	}
}

func TestDispatch_NoSecondAttemptWithoutDistinctFallback(t *testing.T) {
	anthropic := &stubClient{failFor: map[string]error{"claude-sonnet-4-5": errors.New("down")}}
	openai := &stubClient{}
	d := testDispatcher(anthropic, openai)

	for _, fallback := range []string{"", "claude-sonnet-4-5"} {
		anthropic.calls = nil
		_, err := d.Dispatch(context.Background(), Request{
			Primary:  "claude-sonnet-4-5",
			Fallback: fallback,
		})
		if err == nil {
			t.Fatalf("fallback=%q: expected error", fallback)
		}
		if len(anthropic.calls) != 1 {
			t.Errorf("fallback=%q: %d attempts, want 1", fallback, len(anthropic.calls))
		}
		if len(openai.calls) != 0 {
			t.Errorf("fallback=%q: openai client called", fallback)
		}
	}
}

func TestDispatch_RoutesByModelPrefix(t *testing.T) {
	anthropic := &stubClient{text: "a"}
	openai := &stubClient{text: "o"}
	d := testDispatcher(anthropic, openai)

	if _, err := d.Dispatch(context.Background(), Request{Primary: "claude-haiku-4-5"}); err != nil {
		t.Fatalf("dispatch claude: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), Request{Primary: "gpt-4o-mini"}); err != nil {
		t.Fatalf("dispatch gpt: %v", err)
	}
	if len(anthropic.calls) != 1 || anthropic.calls[0] != "claude-haiku-4-5" {
		t.Errorf("anthropic calls = %v", anthropic.calls)
	}
	if len(openai.calls) != 1 || openai.calls[0] != "gpt-4o-mini" {
		t.Errorf("openai calls = %v", openai.calls)
	}
}
