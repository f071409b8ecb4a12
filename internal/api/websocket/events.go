package websocket

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/pipeline"
	"github.com/fortuna/spreadline/internal/predict"
)

// Event types sent to subscribers.
const (
	EventRunStart    = "run_start"
	EventWeekStart   = "week_start"
	EventProgress    = "progress"
	EventRunComplete = "run_complete"
	EventRunError    = "run_error"
	EventPrediction  = "prediction"
)

// Event is one JSON message on the feed.
type Event struct {
	Type       string              `json:"type"`
	Kind       pipeline.RunKind    `json:"kind,omitempty"`
	FromYear   int                 `json:"from_year,omitempty"`
	ToYear     int                 `json:"to_year,omitempty"`
	Year       int                 `json:"year,omitempty"`
	Week       int                 `json:"week,omitempty"`
	Message    string              `json:"message,omitempty"`
	Current    int                 `json:"current,omitempty"`
	Total      int                 `json:"total,omitempty"`
	Result     *pipeline.Result    `json:"result,omitempty"`
	Prediction *predict.Prediction `json:"prediction,omitempty"`
	Error      string              `json:"error,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Send stamps and broadcasts an event.
func (h *Hub) Send(ev Event) {
	ev.Timestamp = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	h.Broadcast(data)
}

// Reporter returns a pipeline.Reporter that streams run progress to the hub.
// Per-game callbacks are not forwarded.
func (h *Hub) Reporter() pipeline.Reporter {
	return reporter{hub: h}
}

// PublishReport broadcasts every prediction of a report.
func (h *Hub) PublishReport(_ context.Context, rep predict.Report) (int, error) {
	for i := range rep.Predictions {
		h.Send(Event{Type: EventPrediction, Prediction: &rep.Predictions[i]})
	}
	return len(rep.Predictions), nil
}

type reporter struct {
	hub *Hub
}

func (r reporter) OnRunStart(kind pipeline.RunKind, fromYear, toYear int) {
	r.hub.Send(Event{Type: EventRunStart, Kind: kind, FromYear: fromYear, ToYear: toYear})
}

func (r reporter) OnWeekStart(year, week int) {
	r.hub.Send(Event{Type: EventWeekStart, Year: year, Week: week})
}

func (r reporter) OnGameProcessed(int64) {}

func (r reporter) OnProgress(message string, current int, total int) {
	r.hub.Send(Event{Type: EventProgress, Message: message, Current: current, Total: total})
}

func (r reporter) OnRunComplete(res pipeline.Result) {
	r.hub.Send(Event{Type: EventRunComplete, Kind: res.Kind, Result: &res})
}

func (r reporter) OnRunError(err error) {
	r.hub.Send(Event{Type: EventRunError, Error: err.Error()})
}
