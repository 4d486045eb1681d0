package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"bestoffer.kz/travel/models/enum"
)

type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      enum.EventType  `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Processed bool            `json:"processed"`
	CreatedAt time.Time       `json:"created_at"`
}
