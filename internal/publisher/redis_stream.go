package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/spreadline/internal/predict"
)

// DefaultPredictionStream is the stream predictions are appended to.
const DefaultPredictionStream = "predictions.cfb.spread"

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	now    func() time.Time
}

// NewRedisStreamPublisher creates a publisher on an existing client. An empty
// stream name selects DefaultPredictionStream.
func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultPredictionStream
	}
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		now:    time.Now,
	}
}

// Stream returns the target stream name.
func (p *RedisStreamPublisher) Stream() string { return p.stream }

// PublishPrediction appends one prediction to the stream.
func (p *RedisStreamPublisher) PublishPrediction(ctx context.Context, pred predict.Prediction) error {
	data, err := json.Marshal(pred)
	if err != nil {
		return err
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"game_id":   pred.GameID,
			"data":      string(data),
			"timestamp": p.now().Unix(),
		},
	}).Err()
}

// PublishReport appends every prediction of a report, stopping at the first
// failure.
func (p *RedisStreamPublisher) PublishReport(ctx context.Context, rep predict.Report) (int, error) {
	for i, pred := range rep.Predictions {
		if err := p.PublishPrediction(ctx, pred); err != nil {
			return i, fmt.Errorf("publish game %d: %w", pred.GameID, err)
		}
	}
	return len(rep.Predictions), nil
}
