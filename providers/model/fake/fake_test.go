package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/leofalp/stategraph/core/overview"
	"github.com/leofalp/stategraph/providers/model"
)

func TestModel_MatchesInRegistrationOrder(t *testing.T) {
	fake := New().
		On("outline", "1. Intro").
		On("out", "never").
		Default("fallback")

	ctx := context.Background()
	if reply, _ := fake.Complete(ctx, "Write an outline"); reply != "1. Intro" {
		t.Errorf("reply = %q", reply)
	}
	if reply, _ := fake.Complete(ctx, "something else"); reply != "fallback" {
		t.Errorf("reply = %q", reply)
	}
	if fake.CallCount("outline") != 1 || len(fake.Calls()) != 2 {
		t.Errorf("calls = %+v", fake.Calls())
	}
}

func TestModel_FailThenRecover(t *testing.T) {
	boom := errors.New("boom")
	fake := New().Fail("x", boom, 1).On("x", "ok")

	if _, err := fake.Complete(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if reply, err := fake.Complete(context.Background(), "x"); err != nil || reply != "ok" {
		t.Errorf("second call = %q, %v", reply, err)
	}
}

func TestModel_NoReply(t *testing.T) {
	if _, err := New().Complete(context.Background(), "unscripted"); !errors.Is(err, ErrNoReply) {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
}

func TestModel_ChatAndExtract(t *testing.T) {
	fake := New().On("name", "Ada").On("score", `{"score": 9}`)
	ctx := context.Background()
	usage := overview.OverviewFromContext(&ctx)

	reply, err := fake.Chat(ctx, []model.Message{model.UserMessage("hi"), model.UserMessage("what is my name")})
	if err != nil || reply.Role != model.RoleAssistant || reply.Content != "Ada" {
		t.Errorf("chat = %+v, %v", reply, err)
	}

	var target struct {
		Score int `json:"score"`
	}
	if err := fake.Extract(ctx, "give a score", nil, &target); err != nil || target.Score != 9 {
		t.Errorf("extract = %+v, %v", target, err)
	}

	// "what is my name" + "Ada", then "give a score" + `{"score": 9}`.
	if got := usage.TotalUsage().TotalTokens; got != 4+1+3+2 {
		t.Errorf("total tokens = %d", got)
	}
}

func TestModel_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Default("ok").Complete(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
