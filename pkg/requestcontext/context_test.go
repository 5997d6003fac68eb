package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActor(t *testing.T) {
	id, role := Actor(context.Background())
	assert.Empty(t, id)
	assert.Empty(t, role)

	id, role = Actor(WithActor(context.Background(), "user-1", "gm"))
	assert.Equal(t, "user-1", id)
	assert.Equal(t, "gm", role)
}

func TestRequestIDAndTime(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(ctx, fixed)))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}
