//go:build integration

package channel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sheetport/internal/character/models"
	"sheetport/internal/delegation"
	"sheetport/internal/delegation/channel"
	"sheetport/pkg/testutil/containers"
)

type RedisChannelSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisChannelSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisChannelSuite))
}

func (s *RedisChannelSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisChannelSuite) TestBroadcast() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch := channel.NewRedis(s.redis.Client, channel.WithRedisChannel("test-broadcast"))
	a, err := ch.Subscribe(ctx)
	s.Require().NoError(err)
	defer a.Close()
	b, err := ch.Subscribe(ctx)
	s.Require().NoError(err)
	defer b.Close()

	msg := delegation.Message{Action: delegation.ActionCreate, RequestID: "r1", Docs: []models.Record{{"name": "X"}}}
	s.Require().NoError(ch.Publish(ctx, msg))

	for _, sub := range []delegation.Subscription{a, b} {
		select {
		case got := <-sub.Messages():
			s.Equal("r1", got.RequestID)
			s.Equal("X", got.Docs[0]["name"])
		case <-ctx.Done():
			s.FailNow("message not received")
		}
	}
}
