package scoreboardservice

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// BackendChangedTopic is published whenever the fallback coordinator selects a different backend.
const BackendChangedTopic = "scoreboard.backend.changed"

// BackendChangedPayload describes a backend switch.
type BackendChangedPayload struct {
	ResolutionID  string    `json:"resolution_id"`
	PreviousIndex int       `json:"previous_index"`
	Index         int       `json:"index"`
	Kind          string    `json:"kind"`
	Round         int       `json:"round"`
	ChangedAt     time.Time `json:"changed_at"`
}

func newBackendChangedMessage(payload BackendChangedPayload) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("resolution_id", payload.ResolutionID)
	return msg, nil
}
