package session

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle phase of the external WhatsApp client.
type Status int

const (
	Starting Status = iota
	QR
	Authenticated
	Ready
	AuthFailure
	Disconnected
	LaunchError
)

var statusNames = map[Status]string{
	Starting:      "starting",
	QR:            "qr",
	Authenticated: "authenticated",
	Ready:         "ready",
	AuthFailure:   "auth_failure",
	Disconnected:  "disconnected",
	LaunchError:   "launch_error",
}

var statusFromName = map[string]Status{
	"starting":      Starting,
	"qr":            QR,
	"authenticated": Authenticated,
	"ready":         Ready,
	"auth_failure":  AuthFailure,
	"disconnected":  Disconnected,
	"launch_error":  LaunchError,
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

// Info describes the authenticated account, available from ready onward.
type Info struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	Platform string `json:"platform,omitempty"`
}

// State is the process-wide lifecycle snapshot of the client session.
// QRCode is present only while Status is QR; Info only from Ready until
// the next disconnect or auth failure.
type State struct {
	Status          Status    `json:"status"`
	QRCode          string    `json:"qr,omitempty"`
	Info            *Info     `json:"info,omitempty"`
	AuthError       string    `json:"authError,omitempty"`
	DisconnectError string    `json:"disconnectError,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the State, duplicating pointer fields so
// the copy can be mutated independently of the original.
func (s *State) Clone() State {
	c := *s
	if s.Info != nil {
		info := *s.Info
		c.Info = &info
	}
	return c
}
