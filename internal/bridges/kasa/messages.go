package kasa

import (
	"encoding/json"
	"fmt"
)

// Request is a JSON command document sent to a relay.
type Request map[string]any

// GetSysInfoRequest returns the status query understood by every model.
//
//	{"system":{"get_sysinfo":{}}}
func GetSysInfoRequest() Request {
	return Request{"system": map[string]any{"get_sysinfo": map[string]any{}}}
}

// SetRelayStateRequest switches the relay on or off. When childIDs are given
// the command is scoped to those outlets of a power strip.
//
//	{"context":{"child_ids":["..."]},"system":{"set_relay_state":{"state":1}}}
func SetRelayStateRequest(on bool, childIDs ...string) Request {
	state := 0
	if on {
		state = 1
	}
	req := Request{"system": map[string]any{"set_relay_state": map[string]any{"state": state}}}
	if len(childIDs) > 0 {
		req["context"] = map[string]any{"child_ids": childIDs}
	}
	return req
}

// SysInfoResponse is the reply to GetSysInfoRequest.
type SysInfoResponse struct {
	System struct {
		GetSysInfo SysInfo `json:"get_sysinfo"`
	} `json:"system"`
}

// SysInfo carries the fields of get_sysinfo the gateway uses.
// Single plugs report RelayState; power strips report Children.
type SysInfo struct {
	Alias      string  `json:"alias"`
	Model      string  `json:"model"`
	DeviceID   string  `json:"deviceId"`
	MAC        string  `json:"mac"`
	SWVersion  string  `json:"sw_ver"`
	RelayState int     `json:"relay_state"`
	OnTime     int     `json:"on_time"`
	Children   []Child `json:"children"`
	ChildNum   int     `json:"child_num"`
	ErrCode    int     `json:"err_code"`
}

// Child is one outlet of a power strip.
type Child struct {
	ID     string `json:"id"`
	State  int    `json:"state"`
	Alias  string `json:"alias"`
	OnTime int    `json:"on_time"`
}

// On reports whether the single-outlet relay is closed.
func (s SysInfo) On() bool {
	return s.RelayState == 1
}

// Child returns the outlet with the given id.
func (s SysInfo) Child(id string) (Child, bool) {
	for _, c := range s.Children {
		if c.ID == id {
			return c, true
		}
	}
	return Child{}, false
}

// On reports whether the outlet is closed.
func (c Child) On() bool {
	return c.State == 1
}

// SetRelayStateResponse is the acknowledgement to SetRelayStateRequest.
type SetRelayStateResponse struct {
	System struct {
		SetRelayState struct {
			ErrCode int    `json:"err_code"`
			ErrMsg  string `json:"err_msg"`
		} `json:"set_relay_state"`
	} `json:"system"`
}

// Err converts a non-zero err_code into ErrMalformed.
func (r SetRelayStateResponse) Err() error {
	ack := r.System.SetRelayState
	if ack.ErrCode != 0 {
		return fmt.Errorf("%w: relay rejected set_relay_state (err_code %d: %s)", ErrMalformed, ack.ErrCode, ack.ErrMsg)
	}
	return nil
}

// encodeRequest marshals a request body.
func encodeRequest(req any) ([]byte, error) {
	if raw, ok := req.([]byte); ok {
		return raw, nil
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return data, nil
}
