package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode unmarshals the payload of inbound into the struct matching its type
// and validates it. The returned value is one of the *Data types of this package.
func Decode(inbound Inbound) (any, *Error) {
	var payload any
	switch inbound.Type {
	case InboundTypeJoin, InboundTypeLeave:
		payload = &JoinData{}
	case InboundTypeRoomMessage:
		payload = &RoomMessageData{}
	case InboundTypeJoinPrivate, InboundTypeLeavePrivate:
		payload = &JoinPrivateData{}
	case InboundTypePrivateMessage:
		payload = &PrivateMessageData{}
	case InboundTypeJoinPrivateGroup, InboundTypeLeavePrivateGroup:
		payload = &JoinGroupData{}
	case InboundTypePrivateGroupMessage:
		payload = &GroupMessageData{}
	case InboundTypeTyping, InboundTypeStopTyping:
		payload = &TypingData{}
	case InboundTypeMessageRead:
		payload = &MessageReadData{}
	default:
		return nil, &Error{Code: ErrCodeInvalidMessage, Msg: "unknown message type"}
	}

	if len(inbound.Data) == 0 {
		return nil, &Error{Code: ErrCodeBadRequest, Msg: "data is required"}
	}
	if err := json.Unmarshal(inbound.Data, payload); err != nil {
		return nil, &Error{Code: ErrCodeBadRequest, Msg: "malformed data"}
	}
	if err := validate.Struct(payload); err != nil {
		return nil, &Error{Code: ErrCodeBadRequest, Msg: validationMessage(err)}
	}
	return payload, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", jsonName(field)))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", jsonName(field), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func jsonName(field string) string {
	switch field {
	case "peerid":
		return "peer_id"
	case "groupid":
		return "group_id"
	case "messageid":
		return "message_id"
	default:
		return field
	}
}
