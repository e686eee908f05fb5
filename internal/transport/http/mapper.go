package http

import (
	"errors"
	"strconv"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (core.Command, *proto.Error) {
	payload, perr := proto.Decode(inbound)
	if perr != nil {
		return nil, perr
	}

	switch data := payload.(type) {
	case *proto.JoinData:
		if inbound.Type == proto.InboundTypeLeave {
			return core.LeaveRoom{Room: data.Room}, nil
		}
		return core.JoinRoom{Room: data.Room}, nil
	case *proto.RoomMessageData:
		return core.SendRoomMessage{Room: data.Room, Text: data.Msg}, nil
	case *proto.JoinPrivateData:
		if inbound.Type == proto.InboundTypeLeavePrivate {
			return core.LeavePrivate{PeerID: data.PeerID}, nil
		}
		return core.JoinPrivate{PeerID: data.PeerID}, nil
	case *proto.PrivateMessageData:
		return core.SendPrivateMessage{Peer: data.Peer, Text: data.Msg}, nil
	case *proto.JoinGroupData:
		if inbound.Type == proto.InboundTypeLeavePrivateGroup {
			return core.LeaveGroup{GroupID: data.GroupID}, nil
		}
		return core.JoinGroup{GroupID: data.GroupID}, nil
	case *proto.GroupMessageData:
		return core.SendGroupMessage{GroupID: data.GroupID, Text: data.Msg}, nil
	case *proto.TypingData:
		if inbound.Type == proto.InboundTypeStopTyping {
			return core.StopTyping{Room: data.Room}, nil
		}
		return core.StartTyping{Room: data.Room}, nil
	case *proto.MessageReadData:
		return core.MarkRead{MessageID: int64(data.MessageID)}, nil
	default:
		return nil, &proto.Error{Code: proto.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

// errorFrame renders err for the client. Domain errors keep their code.
func errorFrame(err error) proto.Outbound {
	var ce *core.CoreError
	if errors.As(err, &ce) {
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: ce.Code, Msg: ce.Message}}
	}
	return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "internal", Msg: "internal error"}}
}

func protoErrorFrame(perr *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: perr}
}

// keyFields splits a routing key into the room name or group id it names.
func keyFields(key core.RoutingKey) (room string, groupID int64) {
	switch key.Scope {
	case core.ScopeRoom:
		return key.Name, 0
	case core.ScopeGroup:
		id, _ := strconv.ParseInt(key.Name, 10, 64)
		return "", id
	default:
		return "", 0
	}
}

func messagePayload(m *core.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:      m.ID,
		Room:    m.Room,
		Peer:    m.Receiver,
		GroupID: m.GroupID,
		User:    m.Sender,
		Text:    m.Text,
		TS:      m.CreatedAt.Unix(),
		Read:    m.Read,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	room, groupID := keyFields(event.Key)
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}

	switch event.Kind {
	case core.EventMessage:
		if event.Message == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "internal", Msg: "empty message event"}}
		}
		out.Data = messagePayload(event.Message)
	case core.EventUserJoined:
		out.Data = proto.EventUserJoined{Room: room, GroupID: groupID, User: event.User}
	case core.EventUserLeft:
		out.Data = proto.EventUserLeft{Room: room, GroupID: groupID, User: event.User}
	case core.EventTyping, core.EventStopTyping:
		out.Data = proto.EventTyping{Room: room, User: event.User}
	case core.EventReadReceipt:
		out.Data = proto.EventReadReceipt{MessageID: event.MessageID, User: event.User, Reader: event.User}
	case core.EventSubscribed:
		out.Data = proto.EventSubscribed{Channel: event.Key.String(), Room: room, GroupID: groupID}
	}
	return out
}
