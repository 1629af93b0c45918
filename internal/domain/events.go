package domain

import (
	"time"

	"github.com/google/uuid"
)

// Revalidation tags understood by the site.
const (
	TagAdminSettings = "admin-settings"

	AdminSettingsPath = "/admin/settings"
)

// RevalidationEvent tells viewers of a page that its data changed.
type RevalidationEvent struct {
	EventID    uuid.UUID `json:"eventId"`
	Tag        string    `json:"tag"`
	Path       string    `json:"path"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewAdminSettingsChanged builds the event fired after any admin record mutation.
func NewAdminSettingsChanged(reason string) RevalidationEvent {
	return RevalidationEvent{
		EventID:    uuid.New(),
		Tag:        TagAdminSettings,
		Path:       AdminSettingsPath,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
