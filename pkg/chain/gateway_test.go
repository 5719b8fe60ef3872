package chain

import (
	"context"
	"errors"
	"testing"
)

func TestNullGateway_EveryMethodReturnsChainDisabled(t *testing.T) {
	gw := NullGateway{}
	ctx := context.Background()

	if _, _, err := gw.RegisterDevice(ctx, "device-1", nil); !errors.Is(err, ErrChainDisabled) {
		t.Fatalf("RegisterDevice: expected ErrChainDisabled, got %v", err)
	}
	if _, err := gw.SubmitStepData(ctx, "handle", 0, nil, nil); !errors.Is(err, ErrChainDisabled) {
		t.Fatalf("SubmitStepData: expected ErrChainDisabled, got %v", err)
	}
	if _, _, err := gw.CreatePet(ctx, "name", "device-1", ""); !errors.Is(err, ErrChainDisabled) {
		t.Fatalf("CreatePet: expected ErrChainDisabled, got %v", err)
	}
	if _, err := gw.ClaimResources(ctx, "handle", 100); !errors.Is(err, ErrChainDisabled) {
		t.Fatalf("ClaimResources: expected ErrChainDisabled, got %v", err)
	}
	if _, err := gw.FeedPet(ctx, "handle"); !errors.Is(err, ErrChainDisabled) {
		t.Fatalf("FeedPet: expected ErrChainDisabled, got %v", err)
	}
	if _, err := gw.PlayWithPet(ctx, "handle"); !errors.Is(err, ErrChainDisabled) {
		t.Fatalf("PlayWithPet: expected ErrChainDisabled, got %v", err)
	}
	if _, err := gw.GetPet(ctx, "handle"); !errors.Is(err, ErrChainDisabled) {
		t.Fatalf("GetPet: expected ErrChainDisabled, got %v", err)
	}
	if _, err := gw.GetBalance(ctx); !errors.Is(err, ErrChainDisabled) {
		t.Fatalf("GetBalance: expected ErrChainDisabled, got %v", err)
	}
}

func TestIsRetryable_NilNeverRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("expected nil error to be non-retryable")
	}
}

func TestIsRetryable_ServerErrorIsRetryable(t *testing.T) {
	err := &httpStatusError{status: 503, body: "service unavailable"}
	if !IsRetryable(err) {
		t.Fatal("expected 5xx status to be retryable")
	}
}

func TestIsRetryable_ClientErrorIsNotRetryable(t *testing.T) {
	err := &httpStatusError{status: 400, body: "bad request"}
	if IsRetryable(err) {
		t.Fatal("expected 4xx status to be non-retryable")
	}
}
