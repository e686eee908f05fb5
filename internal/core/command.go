package core

// Command represents an action requested by a client.
// Each inbound event maps to exactly one concrete command type.
type Command interface {
	command()
}

// JoinRoom subscribes the connection to a public room and announces it.
type JoinRoom struct {
	Room string
}

// JoinPrivate subscribes the connection to its conversation with a peer.
type JoinPrivate struct {
	PeerID int64
}

// JoinGroup subscribes the connection to a group after a membership check and announces it.
type JoinGroup struct {
	GroupID int64
}

// LeaveRoom drops the room subscription and announces it.
type LeaveRoom struct {
	Room string
}

// LeavePrivate drops the conversation subscription.
type LeavePrivate struct {
	PeerID int64
}

// LeaveGroup drops the group subscription and announces it.
type LeaveGroup struct {
	GroupID int64
}

// SendRoomMessage publishes a message to a public room.
type SendRoomMessage struct {
	Room string
	Text string
}

// SendPrivateMessage publishes a message to a peer, addressed by username.
type SendPrivateMessage struct {
	Peer string
	Text string
}

// SendGroupMessage publishes a message to a group.
type SendGroupMessage struct {
	GroupID int64
	Text    string
}

// StartTyping signals typing in a room to everyone but the sender.
type StartTyping struct {
	Room string
}

// StopTyping clears a typing signal.
type StopTyping struct {
	Room string
}

// MarkRead records a read receipt for a message.
type MarkRead struct {
	MessageID int64
}

func (JoinRoom) command()           {}
func (JoinPrivate) command()        {}
func (JoinGroup) command()          {}
func (LeaveRoom) command()          {}
func (LeavePrivate) command()       {}
func (LeaveGroup) command()         {}
func (SendRoomMessage) command()    {}
func (SendPrivateMessage) command() {}
func (SendGroupMessage) command()   {}
func (StartTyping) command()        {}
func (StopTyping) command()         {}
func (MarkRead) command()           {}
