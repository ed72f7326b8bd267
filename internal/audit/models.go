package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block call setup on audit failures.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// ActorUserID is the user causing the event: the caller for routing events,
	// the new subscriber for number assignments.
	ActorUserID string `json:"actor_user_id"`

	IPAddress string `json:"ip_address,omitempty"`

	PhoneNumber  string `json:"phone_number,omitempty"`
	Channel      string `json:"channel,omitempty"`
	TargetUserID string `json:"target_user_id,omitempty"`
	TargetType   string `json:"target_type,omitempty"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeNumberAssigned       EventType = "number_assigned"
	EventTypeCallRouted           EventType = "call_routed"
	EventTypeInviteDispatchFailed EventType = "invite_dispatch_failed"
)
