package kit

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithUserID(ctx, "u1")
	ctx = WithStoreID(ctx, "s1")
	ctx = WithRequestID(ctx, "req1")
	ctx = WithTraceID(ctx, "tr1")

	if got := GetUserID(ctx); got != "u1" {
		t.Errorf("user id = %q", got)
	}
	if got := GetStoreID(ctx); got != "s1" {
		t.Errorf("store id = %q", got)
	}
	if got := GetRequestID(ctx); got != "req1" {
		t.Errorf("request id = %q", got)
	}
	if got := GetTraceID(ctx); got != "tr1" {
		t.Errorf("trace id = %q", got)
	}
}

func TestTransportDefaultsToHTTP(t *testing.T) {
	if got := GetTransport(context.Background()); got != "http" {
		t.Errorf("transport = %q, want http", got)
	}
	ctx := WithTransport(context.Background(), "mcp")
	if got := GetTransport(ctx); got != "mcp" {
		t.Errorf("transport = %q, want mcp", got)
	}
}
