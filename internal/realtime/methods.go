package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/messenger-cosmos-public/bridge/internal/presence"
	"github.com/messenger-cosmos-public/bridge/internal/validation"
)

// Invocation is one client -> server frame.
type Invocation struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

var errUnknownMethod = errors.New("unknown method")

type metadataParams struct {
	Metadata map[string]string `json:"metadata" validate:"omitempty,max=32,dive,keys,max=64,endkeys,max=1024"`
}

type registerParams struct {
	Name     string            `json:"name" validate:"required,max=128"`
	Metadata map[string]string `json:"metadata" validate:"omitempty,max=32,dive,keys,max=64,endkeys,max=1024"`
}

type messageParams struct {
	Message string `json:"message" validate:"max=16384"`
}

type directMessageParams struct {
	TargetClientID string `json:"targetClientId" validate:"required"`
	Message        string `json:"message" validate:"max=16384"`
}

type clientParams struct {
	TargetClientID string `json:"targetClientId" validate:"required"`
}

type groupParams struct {
	GroupName string `json:"groupName" validate:"required,max=128"`
}

type groupMetadataParams struct {
	GroupName string            `json:"groupName" validate:"required,max=128"`
	Metadata  map[string]string `json:"metadata" validate:"omitempty,max=32,dive,keys,max=64,endkeys,max=1024"`
}

type groupMessageParams struct {
	GroupName string `json:"groupName" validate:"required,max=128"`
	Message   string `json:"message" validate:"max=16384"`
}

type methodFunc func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error

// methods maps wire method names onto router operations.
var methods = map[string]methodFunc{
	"RegisterClient": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[registerParams](v, raw)
		if err == nil {
			r.Register(id, p.Name, p.Metadata)
		}
		return err
	},
	"UpdateClientMetadata": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[metadataParams](v, raw)
		if err == nil {
			r.UpdateMetadata(id, p.Metadata)
		}
		return err
	},
	"BroadcastMessage": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[messageParams](v, raw)
		if err == nil {
			r.Broadcast(id, p.Message)
		}
		return err
	},
	"SendToOthers": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[messageParams](v, raw)
		if err == nil {
			r.SendToOthers(id, p.Message)
		}
		return err
	},
	"SendToClient": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[directMessageParams](v, raw)
		if err == nil {
			r.SendToClient(id, p.TargetClientID, p.Message)
		}
		return err
	},
	"RequestConnectedClients": func(r *presence.Router, _ *validation.Validator, id string, _ json.RawMessage) error {
		r.RequestConnectedClients(id)
		return nil
	},
	"RequestClientInfo": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[clientParams](v, raw)
		if err == nil {
			r.RequestClientInfo(id, p.TargetClientID)
		}
		return err
	},
	"JoinGroup": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[groupMetadataParams](v, raw)
		if err == nil {
			r.Join(id, p.GroupName, p.Metadata)
		}
		return err
	},
	"LeaveGroup": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[groupParams](v, raw)
		if err == nil {
			r.Leave(id, p.GroupName)
		}
		return err
	},
	"UpdateGroupMetadata": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[groupMetadataParams](v, raw)
		if err == nil {
			r.UpdateGroupMetadata(id, p.GroupName, p.Metadata)
		}
		return err
	},
	"GetGroupInfo": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[groupParams](v, raw)
		if err == nil {
			r.GetGroupInfo(id, p.GroupName)
		}
		return err
	},
	"GetGroupList": func(r *presence.Router, _ *validation.Validator, id string, _ json.RawMessage) error {
		r.GetGroupList(id)
		return nil
	},
	"GetGroupMember": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[groupParams](v, raw)
		if err == nil {
			r.GetGroupMember(id, p.GroupName)
		}
		return err
	},
	"SendToGroup": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[groupMessageParams](v, raw)
		if err == nil {
			r.SendToGroup(id, p.GroupName, p.Message)
		}
		return err
	},
	"SendToOthersInGroup": func(r *presence.Router, v *validation.Validator, id string, raw json.RawMessage) error {
		p, err := bind[groupMessageParams](v, raw)
		if err == nil {
			r.SendToOthersInGroup(id, p.GroupName, p.Message)
		}
		return err
	},
}

// invoke runs one decoded invocation and returns the metrics outcome label.
func invoke(r *presence.Router, v *validation.Validator, id string, inv Invocation) string {
	fn, ok := methods[inv.Method]
	if !ok {
		r.Fail(id, presence.CodeUnknownMethod, fmt.Errorf("%w: %q", errUnknownMethod, inv.Method))
		return "unknown"
	}
	if err := fn(r, v, id, inv.Params); err != nil {
		r.Fail(id, presence.CodeInvalidParams, fmt.Errorf("%s: %w", inv.Method, err))
		return "invalid"
	}
	return "ok"
}

func bind[T any](v *validation.Validator, raw json.RawMessage) (T, error) {
	var p T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("decode params: %w", err)
		}
	}
	if err := v.Struct(p); err != nil {
		return p, err
	}
	return p, nil
}
