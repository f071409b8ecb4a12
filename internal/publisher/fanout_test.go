package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/spreadline/internal/predict"
)

type countingPublisher struct {
	reports int
	err     error
}

func (c *countingPublisher) PublishReport(_ context.Context, rep predict.Report) (int, error) {
	c.reports++
	if c.err != nil {
		return 0, c.err
	}
	return len(rep.Predictions), nil
}

func TestFanout_PublishesToEveryTarget(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	stream := NewRedisStreamPublisher(client, "fanout.test")
	live := &countingPublisher{}
	rep := predict.Report{Predictions: []predict.Prediction{{GameID: 1}, {GameID: 2}}}

	n, err := Fanout{stream, live}.PublishReport(context.Background(), rep)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, live.reports)

	length, err := client.XLen(context.Background(), "fanout.test").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)
}

func TestFanout_ContinuesPastFailures(t *testing.T) {
	down := errors.New("redis down")
	first := &countingPublisher{err: down}
	second := &countingPublisher{}
	third := &countingPublisher{err: errors.New("closed")}

	n, err := Fanout{first, second, third}.PublishReport(context.Background(), predict.Report{Predictions: []predict.Prediction{{GameID: 1}}})
	assert.Zero(t, n)
	assert.ErrorIs(t, err, down)
	assert.ErrorContains(t, err, "closed")
	assert.Equal(t, 1, second.reports)
}
