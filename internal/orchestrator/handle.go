package orchestrator

import (
	"context"
	"fmt"

	"github.com/rbright/dictate/internal/ipc"
)

// Handle serves IPC commands. Status is answered from the latest snapshot;
// every other command is queued for the loop and answered once it runs.
func (o *Orchestrator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		s := o.Snapshot()
		return ipc.Response{
			OK:       true,
			State:    s.State,
			Message:  "status",
			Progress: max(s.Progress, 0),
			Queued:   s.Queued,
			Mic:      s.Mic,
			Devices:  s.Devices,
		}
	case ipc.CommandToggle:
		reply := make(chan ipc.Response, 1)
		o.hotkeys.push(hotkeyPress{reply: reply})
		return o.await(ctx, reply)
	case ipc.CommandRefreshDevices:
		reply := make(chan ipc.Response, 1)
		o.trays.push(trayClick{reply: reply})
		return o.await(ctx, reply)
	case ipc.CommandStop:
		return o.submitMenu(ctx, menuAction{kind: menuStop})
	case ipc.CommandCancel:
		return o.submitMenu(ctx, menuAction{kind: menuCancel})
	case ipc.CommandSelectMic:
		return o.submitMenu(ctx, menuAction{kind: menuSelectMic, mic: req.Arg})
	case ipc.CommandQuit:
		return o.submitMenu(ctx, menuAction{kind: menuQuit})
	default:
		return ipc.Response{OK: false, State: o.Snapshot().State, Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (o *Orchestrator) submitMenu(ctx context.Context, action menuAction) ipc.Response {
	action.reply = make(chan ipc.Response, 1)
	o.menus.push(action)
	return o.await(ctx, action.reply)
}

func (o *Orchestrator) await(ctx context.Context, reply <-chan ipc.Response) ipc.Response {
	select {
	case resp := <-reply:
		return resp
	case <-ctx.Done():
		return ipc.Response{OK: false, Error: ctx.Err().Error()}
	case <-o.done:
		return ipc.Response{OK: false, Error: "daemon stopping"}
	}
}
