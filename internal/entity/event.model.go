package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type EventType string

const (
	EventDatasetPublished     EventType = "dataset.published"
	EventDatasetRefreshed     EventType = "dataset.refreshed"
	EventDatasetSchemaChanged EventType = "dataset.schema.changed"
	EventDatasetConnected     EventType = "dataset.connected"
	EventUserFollowed         EventType = "user.followed"
	EventDatasetLiked         EventType = "dataset.liked"
	EventContractSigned       EventType = "contract.signed"
)

// Event is an append-only activity record. It is never updated or deleted.
type Event struct {
	ID          string            `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Type        EventType         `json:"type" gorm:"type:varchar(64);not null" validate:"required,oneof=dataset.published dataset.refreshed dataset.schema.changed dataset.connected user.followed dataset.liked contract.signed"`
	PayloadJSON datatypes.JSONMap `json:"payload_json"`
	ActorID     *string           `json:"actor_id" gorm:"type:varchar(128)"`
	DatasetID   *string           `json:"dataset_id" gorm:"type:varchar(64)"`
	CreatedAt   string            `json:"created_at" gorm:"type:varchar(32)"`
}

func NewEvent(typ EventType, payload map[string]any, actorID, datasetID string, now time.Time) (*Event, error) {
	e := &Event{
		ID:          uuid.NewString(),
		Type:        typ,
		PayloadJSON: datatypes.JSONMap(cloneMap(payload)),
		ActorID:     strPtr(actorID),
		DatasetID:   strPtr(datasetID),
		CreatedAt:   FormatTime(now),
	}
	if e.PayloadJSON == nil {
		e.PayloadJSON = datatypes.JSONMap{}
	}
	if err := Validate(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.PayloadJSON = datatypes.JSONMap(cloneMap(e.PayloadJSON))
	if e.ActorID != nil {
		a := *e.ActorID
		c.ActorID = &a
	}
	if e.DatasetID != nil {
		d := *e.DatasetID
		c.DatasetID = &d
	}
	return &c
}

func (e *Event) Actor() string {
	if e.ActorID == nil {
		return ""
	}
	return *e.ActorID
}

func (e *Event) Dataset() string {
	if e.DatasetID == nil {
		return ""
	}
	return *e.DatasetID
}

// Payload returns a string payload value, or "".
func (e *Event) Payload(key string) string {
	if v, ok := e.PayloadJSON[key].(string); ok {
		return v
	}
	return ""
}
