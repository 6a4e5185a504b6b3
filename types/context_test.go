package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := SessionID(ctx); ok {
		t.Fatal("empty context should carry no session")
	}

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithSessionID(ctx, "draft-42")
	if got, ok := SessionID(ctx); !ok || got != "draft-42" {
		t.Fatalf("SessionID mismatch: %v %v", got, ok)
	}

	ctx = WithProjectID(ctx, "novel")
	if got, ok := ProjectID(ctx); !ok || got != "novel" {
		t.Fatalf("ProjectID mismatch: %v %v", got, ok)
	}

	ctx = WithSessionID(ctx, "")
	if _, ok := SessionID(ctx); ok {
		t.Fatal("blank session id should be reported as absent")
	}
}
