package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettersAndGetters(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	ctx = SetRequestID(ctx, "req-1")
	ctx = SetUserID(ctx, "user-1")
	ctx = SetSessionID(ctx, "sess-1")
	ctx = SetBusinessID(ctx, "biz_1234abcd")
	ctx = SetMethod(ctx, "POST")
	ctx = SetRoute(ctx, "/api/v1/onboarding/sessions")
	ctx = SetRemoteIP(ctx, "127.0.0.1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Equal(t, "sess-1", GetSessionID(ctx))
	assert.Equal(t, "biz_1234abcd", GetBusinessID(ctx))
	assert.Equal(t, "POST", GetMethod(ctx))
	assert.Equal(t, "/api/v1/onboarding/sessions", GetRoute(ctx))
	assert.Equal(t, "127.0.0.1", GetRemoteIP(ctx))
}

func TestLogFields(t *testing.T) {
	ctx := SetRequestID(context.Background(), "req-1")
	ctx = SetSessionID(ctx, "sess-1")

	assert.Equal(t, map[string]any{"request_id": "req-1", "session_id": "sess-1"}, LogFields(ctx))
}
