// internal/domain/models/notification.go
package models

import (
	"time"
)

// NotificationAction is one interaction choice offered on a notification.
type NotificationAction struct {
	Action string `bson:"action" json:"action"`
	Title  string `bson:"title" json:"title"`
}

// Notification is a push payload held for the dashboard to render. Title and
// body are stored already sanitized; Target is the in-app path a client
// should open or focus when the notification is interacted with.
type Notification struct {
	ID           string               `bson:"_id" json:"id"` // uuid
	Title        string               `bson:"title" json:"title"`
	Body         string               `bson:"body" json:"body"`
	Icon         string               `bson:"icon,omitempty" json:"icon,omitempty"`
	Actions      []NotificationAction `bson:"actions,omitempty" json:"actions,omitempty"`
	Target       string               `bson:"target" json:"target"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	Delivered    bool                 `bson:"delivered" json:"delivered"`
	InteractedAt *time.Time           `bson:"interacted_at,omitempty" json:"interacted_at,omitempty"`
}
