// Package ipc is the newline-delimited JSON protocol between the daemon and
// its client commands over a unix socket.
package ipc

// Commands understood by the daemon.
const (
	CommandStatus         = "status"
	CommandToggle         = "toggle"
	CommandStop           = "stop"
	CommandCancel         = "cancel"
	CommandSelectMic      = "select-mic"
	CommandRefreshDevices = "refresh-devices"
	CommandQuit           = "quit"
)

// Request is one client command. Arg carries the microphone name for
// select-mic and is empty otherwise.
type Request struct {
	Command string `json:"command"`
	Arg     string `json:"arg,omitempty"`
}

// Response is the daemon's reply.
type Response struct {
	OK       bool     `json:"ok"`
	State    string   `json:"state,omitempty"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	Progress int      `json:"progress,omitempty"`
	Queued   int      `json:"queued,omitempty"`
	Mic      string   `json:"mic,omitempty"`
	Devices  []string `json:"devices,omitempty"`
}
