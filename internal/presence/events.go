package presence

import (
	"errors"
	"time"
)

// Event names delivered to clients.
const (
	EventRequestRegistration  = "RequestRegistration"
	EventClientConnected      = "ClientConnected"
	EventConnectedClients     = "ConnectedClients"
	EventClientDisconnected   = "ClientDisconnected"
	EventSuccessRegistered    = "SuccessRegistered"
	EventClientUpdated        = "ClientUpdated"
	EventReceiveMessage       = "ReceiveMessage"
	EventGroupCreated         = "GroupCreated"
	EventGroupRemoved         = "GroupRemoved"
	EventGroupList            = "GroupList"
	EventGroupInfo            = "GroupInfo"
	EventGroupMetadataUpdated = "GroupMetadataUpdated"
	EventGroupMemberJoined    = "GroupMemberJoined"
	EventGroupMemberLeft      = "GroupMemberLeft"
	EventGroupMemberList      = "GroupMemberList"
	EventReceiveGroupMessage  = "ReceiveGroupMessage"
	EventInvocationFailed     = "InvocationFailed"
)

// Failure codes carried by failed events.
const (
	CodeClientNotFound = "client_not_found"
	CodeGroupNotFound  = "group_not_found"
	CodeInvalidParams  = "invalid_params"
	CodeUnknownMethod  = "unknown_method"
	CodeBadFrame       = "bad_frame"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrGroupNotFound  = errors.New("group not found")
)

type Status string

const (
	StatusOK   Status = "ok"
	StatusFail Status = "fail"
)

// Failure explains why a targeted operation produced no result.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is one named notification. Status discriminates between a normal
// payload in Data and a Failure in Error.
type Event struct {
	Name   string   `json:"event"`
	Status Status   `json:"status"`
	Data   any      `json:"data,omitempty"`
	Error  *Failure `json:"error,omitempty"`
}

func (e Event) Failed() bool { return e.Status == StatusFail }

func NewEvent(name string, data any) Event {
	return Event{Name: name, Status: StatusOK, Data: data}
}

func NewFailure(name, code string, err error) Event {
	return Event{Name: name, Status: StatusFail, Error: &Failure{Code: code, Message: err.Error()}}
}

type ClientRef struct {
	ClientID string `json:"clientId"`
}

type ClientPayload struct {
	ClientID string        `json:"clientId"`
	Client   ClientSession `json:"client"`
}

type MessagePayload struct {
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type GroupMessagePayload struct {
	GroupID   string    `json:"groupId"`
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type MemberJoinedPayload struct {
	GroupID  string        `json:"groupId"`
	ClientID string        `json:"clientId"`
	Client   ClientSession `json:"client"`
}

type MemberLeftPayload struct {
	GroupID  string `json:"groupId"`
	ClientID string `json:"clientId"`
}

type GroupRef struct {
	GroupID string `json:"groupId"`
}
