package calls

// Invite is the result of routing a call: where the caller should connect
// and with which credential.
//
// There is no call record. Once an Invite is returned the service holds no
// state about the call; joining and hanging up happen on the media provider.
type Invite struct {
	TargetType  TargetType `json:"target_type"`
	ChannelName string     `json:"channel_name"`
	Credential  string     `json:"token"`

	// UID is the caller's identity on the channel. 0 means unassigned.
	UID uint32 `json:"uid"`
}

type TargetType string

const (
	TargetAgent TargetType = "agent"
	TargetUser  TargetType = "user"
)

func (t TargetType) Valid() bool {
	return t == TargetAgent || t == TargetUser
}
