package event

import "time"

type Type string

const (
	TypeUserRegistered   Type = "user.registered"
	TypeUserLoggedIn     Type = "user.logged_in"
	TypeUserLoginFailed  Type = "user.login_failed"
	TypeIdentityRejected Type = "identity.rejected"
)

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // channel plus unsubscribe func
}
