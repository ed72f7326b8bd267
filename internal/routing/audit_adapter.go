package routing

import (
	"context"

	"callbridge/internal/audit"
)

// AuditAdapter bridges routing's audit hook to the shared audit.Service.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogCallRouted(ctx context.Context, e CallAuditEvent) error {
	return a.append(ctx, audit.EventTypeCallRouted, "call routed", e)
}

func (a AuditAdapter) LogInviteDispatchFailed(ctx context.Context, e CallAuditEvent) error {
	return a.append(ctx, audit.EventTypeInviteDispatchFailed, e.Reason, e)
}

func (a AuditAdapter) append(ctx context.Context, t audit.EventType, msg string, e CallAuditEvent) error {
	if a.Audit == nil {
		return nil
	}
	return a.Audit.Append(ctx, audit.Event{
		Type:         t,
		ActorUserID:  e.CallerID,
		IPAddress:    e.IPAddress,
		PhoneNumber:  e.Dialed,
		Channel:      e.Channel,
		TargetUserID: e.TargetUserID,
		TargetType:   string(e.TargetType),
		Message:      msg,
	})
}
