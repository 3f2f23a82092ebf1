package device

import (
	"encoding/json"

	"github.com/golang/glog"

	"github.com/rollpad/rollpad.go/pkg/link"
	"github.com/rollpad/rollpad.go/pkg/store"
)

// Command names recognized on the command channel.
const (
	CmdClearAttendance    = "clear_attendance"
	CmdClearAllAttendance = "clear_all_attendance"
	CmdGetStatus          = "get_status"
	CmdExportData         = "export_data"
	CmdImportData         = "import_data"
)

// Dispatcher interprets decoded inbound messages. It is the protocol
// boundary: every parse, validation or storage failure becomes a structured
// error response, never a propagated failure.
type Dispatcher struct {
	cfg   *Config
	store *store.Store
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg *Config, st *store.Store) *Dispatcher {
	return &Dispatcher{cfg: cfg, store: st}
}

type commandRequest struct {
	Command string          `json:"command"`
	ClassID string          `json:"class_id"`
	Data    json.RawMessage `json:"data"`
}

type response struct {
	Status  string      `json:"status,omitempty"`
	Command string      `json:"command,omitempty"`
	ClassID string      `json:"class_id,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type statusReport struct {
	DeviceName    string      `json:"device_name"`
	ClassesCount  int         `json:"classes_count"`
	TotalStudents int         `json:"total_students"`
	Storage       StorageInfo `json:"storage"`
	MemoryFree    MemoryInfo  `json:"memory_free"`
}

// Dispatch handles one message from a channel and returns the response to
// notify back on the same channel, or nil when the channel carries no
// inbound protocol.
func (d *Dispatcher) Dispatch(ch link.Channel, message string) []byte {
	switch ch {
	case link.ChanRosterSync:
		return d.syncRoster(message)
	case link.ChanCommand:
		return d.command(message)
	}
	glog.Warningf("channel %s: unexpected inbound message dropped", ch)
	return nil
}

func (d *Dispatcher) syncRoster(message string) []byte {
	if err := d.store.ReplaceRoster([]byte(message)); err != nil {
		glog.Warningf("roster sync rejected: %v", err)
		return marshal(response{Status: "error", Message: err.Error()})
	}
	return marshal(response{Status: "success", Message: "Data synced successfully"})
}

func (d *Dispatcher) command(message string) []byte {
	var req commandRequest
	if err := json.Unmarshal([]byte(message), &req); err != nil {
		glog.Warningf("malformed command: %v", err)
		return marshal(response{Status: "error", Message: "Invalid command message"})
	}

	switch req.Command {
	case CmdClearAttendance:
		if req.ClassID == "" {
			return marshal(response{Status: "error", Command: req.Command, Message: "class_id required"})
		}
		resp := response{Status: "success", Command: req.Command, ClassID: req.ClassID}
		if err := d.store.ClearAttendance(req.ClassID); err != nil {
			resp.Status = "error"
			resp.Message = err.Error()
		}
		return marshal(resp)

	case CmdClearAllAttendance:
		resp := response{Status: "success", Command: req.Command}
		if err := d.store.ClearAllAttendance(); err != nil {
			resp.Status = "error"
			resp.Message = err.Error()
		}
		return marshal(resp)

	case CmdGetStatus:
		stats := d.store.Statistics()
		return marshal(statusReport{
			DeviceName:    d.cfg.Name,
			ClassesCount:  stats.TotalClasses,
			TotalStudents: stats.TotalStudents,
			Storage:       ReadStorageInfo(d.cfg.DataDir),
			MemoryFree:    ReadMemoryInfo(),
		})

	case CmdExportData:
		return marshal(response{Status: "success", Command: req.Command, Data: d.store.Export()})

	case CmdImportData:
		resp := response{Status: "success", Command: req.Command}
		if err := d.store.Import(req.Data); err != nil {
			resp.Status = "error"
			resp.Message = err.Error()
		}
		return marshal(resp)
	}

	glog.Warningf("unknown command %q", req.Command)
	return marshal(response{Status: "error", Message: "Unknown command"})
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Responses are built from plain structs; this cannot happen in
		// practice, but the boundary still answers.
		glog.Errorf("encode response: %v", err)
		return []byte(`{"status":"error","message":"internal error"}`)
	}
	return data
}
