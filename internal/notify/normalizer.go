// internal/notify/normalizer.go
package notify

import (
	"fmt"
	"strings"
	"time"

	"school-notifier/internal/models"

	"github.com/google/uuid"
)

// wellKnownKeys are payload fields lifted onto the canonical record itself.
// Everything else passes through untouched in Related for the router.
var wellKnownKeys = map[string]bool{
	"id":       true,
	"type":     true,
	"title":    true,
	"message":  true,
	"icon":     true,
	"priority": true,
	"link":     true,
}

// NewID synthesizes a collision-resistant (not cryptographically secure)
// client-side notification id: high-resolution timestamp plus random suffix.
func NewID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%x-%s", time.Now().UnixNano(), suffix)
}

// Normalize maps a raw push event into the canonical Notification shape.
// The event name supplies the default type; an explicit payload type wins.
// Missing display fields are defaulted per type, never rejected.
func Normalize(eventName string, payload map[string]interface{}) models.Notification {
	n := models.Notification{
		ID:        NewID(),
		Type:      eventName,
		Timestamp: time.Now(),
		Read:      false,
	}

	if payload != nil {
		if v, ok := payload["type"].(string); ok && v != "" {
			n.Type = v
		}
		if v, ok := payload["title"].(string); ok {
			n.Title = v
		}
		if v, ok := payload["message"].(string); ok {
			n.Message = v
		}
		if v, ok := payload["icon"].(string); ok {
			n.Icon = v
		}
		if v, ok := payload["priority"].(string); ok && models.Priority(v).Valid() {
			n.Priority = models.Priority(v)
		}
		if v, ok := payload["link"].(string); ok {
			n.Link = v
		}

		for k, v := range payload {
			if wellKnownKeys[k] {
				continue
			}
			if n.Related == nil {
				n.Related = make(map[string]interface{})
			}
			n.Related[k] = v
		}
	}

	applyDefaults(&n)
	return n
}

// NormalizeHistory maps a server-persisted record into the canonical shape.
// Server-assigned ids, read flags and timestamps are kept as-is.
func NormalizeHistory(rec models.ServerRecord) models.Notification {
	n := models.Notification{
		ID:       rec.ID,
		Type:     rec.Type,
		Title:    rec.Title,
		Message:  rec.Message,
		Icon:     rec.Icon,
		Link:     rec.Link,
		Read:     rec.Read,
		Related:  rec.Payload,
	}
	if rec.ID == "" {
		n.ID = NewID()
	}
	if models.Priority(rec.Priority).Valid() {
		n.Priority = models.Priority(rec.Priority)
	}

	if ts, err := time.Parse(time.RFC3339, rec.CreatedAt); err == nil {
		n.Timestamp = ts
	} else {
		n.Timestamp = time.Now()
	}

	applyDefaults(&n)
	return n
}

func applyDefaults(n *models.Notification) {
	icon, priority, title := models.DefaultsFor(n.Type)
	if n.Icon == "" {
		n.Icon = icon
	}
	if n.Priority == "" {
		n.Priority = priority
	}
	if n.Title == "" {
		n.Title = title
	}
}
