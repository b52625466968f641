package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shenikar/snap_and_send/internal/models"
)

// Event - событие жизненного цикла инцидента, отправляемое подписчикам.
// Сериализуется ровно в тело запроса {event, data, timestamp}.
type Event struct {
	Kind      models.EventKind `json:"event"`
	Data      json.RawMessage  `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewEvent сериализует данные события
func NewEvent(kind models.EventKind, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s event data: %w", kind, err)
	}
	return Event{
		Kind:      kind,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}
