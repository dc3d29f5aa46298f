package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/relay-gateway/internal/automation"
	"github.com/nerrad567/relay-gateway/internal/bridges/kasa"
	"github.com/nerrad567/relay-gateway/internal/device"
)

// Kind identifies a command.
type Kind string

const (
	KindSystemStatus Kind = "system_status"
	KindRefresh      Kind = "refresh"
	KindAutoRefresh  Kind = "auto_refresh"
	KindRelay        Kind = "relay"
	KindTag          Kind = "tag"
	KindPresetSet    Kind = "preset_set"
	KindPresetList   Kind = "preset_list"
)

// Command is a request to the worker.
type Command struct {
	ID     string
	Kind   Kind
	Target string // relay name, tag or preset name
	Action automation.Action

	reply chan Response
}

// SystemStatus requests the status of every relay, the rooms and the current preset.
func SystemStatus() Command { return Command{Kind: KindSystemStatus} }

// Refresh reloads the registry from the config source and always answers.
func Refresh() Command { return Command{Kind: KindRefresh} }

// AutoRefresh reloads the registry and answers only on failure.
func AutoRefresh() Command { return Command{Kind: KindAutoRefresh} }

// RelayCommand applies action to the relay called name.
func RelayCommand(name string, action automation.Action) Command {
	return Command{Kind: KindRelay, Target: name, Action: action}
}

// TagCommand applies action to every relay tagged tag.
func TagCommand(tag string, action automation.Action) Command {
	return Command{Kind: KindTag, Target: tag, Action: action}
}

// PresetSet applies the named preset.
func PresetSet(name string) Command { return Command{Kind: KindPresetSet, Target: name} }

// PresetListNames lists preset names.
func PresetListNames() Command { return Command{Kind: KindPresetList} }

// ResponseKind distinguishes the Response variants.
type ResponseKind string

const (
	ResponseValue ResponseKind = "value"
	ResponseBool  ResponseKind = "bool"
	ResponseError ResponseKind = "error"
)

// Error codes carried by error Responses.
const (
	CodeNotFound      = "not_found"
	CodeUnreachable   = "unreachable"
	CodeMalformed     = "malformed"
	CodeInvalidAction = "invalid_action"
	CodeUnavailable   = "unavailable"
	CodeInternal      = "internal"
)

// Response answers exactly one Command and echoes its ID.
type Response struct {
	ID    string       `json:"id"`
	Kind  ResponseKind `json:"kind"`
	Value any          `json:"value,omitempty"`
	Bool  bool         `json:"bool,omitempty"`
	Code  string       `json:"code,omitempty"`
	Error string       `json:"error,omitempty"`

	err error
}

// SystemStatusValue is the Value of a SystemStatus response.
type SystemStatusValue struct {
	Relays        []device.Snapshot `json:"relays"`
	Rooms         []string          `json:"rooms"`
	CurrentPreset string            `json:"currentPreset"`
}

func valueResponse(id string, v any) Response {
	return Response{ID: id, Kind: ResponseValue, Value: v}
}

func boolResponse(id string, b bool) Response {
	return Response{ID: id, Kind: ResponseBool, Bool: b}
}

func errorResponse(id string, err error) Response {
	return Response{ID: id, Kind: ResponseError, Code: codeFor(err), Error: err.Error(), err: err}
}

// Err returns the error carried by an error Response, or nil.
// The result matches the package sentinels with errors.Is, so callers can
// classify a Response without parsing its message.
func (r Response) Err() error {
	if r.Kind != ResponseError {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	var sentinel error
	switch r.Code {
	case CodeNotFound:
		sentinel = device.ErrNotFound
	case CodeUnreachable:
		sentinel = kasa.ErrUnreachable
	case CodeMalformed:
		sentinel = kasa.ErrMalformed
	case CodeInvalidAction:
		sentinel = automation.ErrInvalidAction
	case CodeUnavailable:
		sentinel = ErrChannelClosed
	default:
		sentinel = ErrInternal
	}
	return fmt.Errorf("%w: %s", sentinel, r.Error)
}

// codeFor classifies err. Not-found wins over transport failures, and
// unreachable wins over malformed when an aggregate holds both.
func codeFor(err error) string {
	switch {
	case errors.Is(err, device.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, kasa.ErrUnreachable):
		return CodeUnreachable
	case errors.Is(err, kasa.ErrMalformed):
		return CodeMalformed
	case errors.Is(err, automation.ErrInvalidAction):
		return CodeInvalidAction
	case errors.Is(err, ErrChannelClosed):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

func newID() string {
	return uuid.NewString()
}
