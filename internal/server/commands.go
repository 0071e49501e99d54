package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nubi-io/nubi/internal/orchestrator"
)

// commandFrame is the inbound JSON shape a subscriber sends over its
// WebSocket connection: {"command": "reload"|"test"|"get_status"}.
type commandFrame struct {
	Command string `json:"command"`
}

// commandReply is the outbound JSON shape delivered back as a
// fanout.EventCommandResult event.
type commandReply struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail,omitempty"`
	Status  any    `json:"status,omitempty"`
}

// dispatchCommand decodes one inbound frame and routes it to the
// Orchestrator, returning the reply to deliver back to the sender. A
// malformed frame is reported back to the caller rather than silently
// dropped, so the error return is informational only.
func dispatchCommand(ctx context.Context, orch *orchestrator.Orchestrator, data []byte) (*commandReply, error) {
	var frame commandFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return &commandReply{OK: false, Detail: "malformed command frame"}, err
	}

	switch frame.Command {
	case "reload":
		if err := orch.ManualReload(ctx); err != nil {
			return &commandReply{Command: frame.Command, OK: false, Detail: err.Error()}, err
		}
		return &commandReply{Command: frame.Command, OK: true}, nil

	case "test":
		res, err := orch.TestConfig(ctx)
		if err != nil {
			return &commandReply{Command: frame.Command, OK: false, Detail: err.Error()}, err
		}
		return &commandReply{Command: frame.Command, OK: res.OK, Detail: res.Output}, nil

	case "get_status":
		return &commandReply{Command: frame.Command, OK: true, Status: orch.Status(ctx)}, nil

	default:
		err := fmt.Errorf("unknown command %q", frame.Command)
		return &commandReply{Command: frame.Command, OK: false, Detail: err.Error()}, err
	}
}
