package routing

import "callbridge/internal/calls"

// Decision is where a dialed number leads, before any channel or credential exists.
//
// It carries only what is needed to set the call up: the kind of target, which
// user (if any) to invite, and where to reach them.
type Decision struct {
	TargetType calls.TargetType

	// TargetUserID and Endpoint are empty for agent calls.
	TargetUserID string
	Endpoint     string

	ChannelPrefix string
}

// Dispatches reports whether setting up this call pushes an invitation.
func (d Decision) Dispatches() bool {
	return d.TargetType == calls.TargetUser
}
