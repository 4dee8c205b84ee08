package ops

import (
	"encoding/json"
	"fmt"

	"github.com/cryguy/jsctx/internal/bridge"
	"github.com/cryguy/jsctx/internal/codec"
	"github.com/cryguy/jsctx/internal/core"
)

// ErrorInfo is the description script produces for a thrown value.
type ErrorInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// RuntimeError builds the host error for an error description.
func (i ErrorInfo) RuntimeError() *core.RuntimeError {
	return &core.RuntimeError{Name: i.Name, Message: i.Message, Stack: i.Stack}
}

// ParseErrorInfo decodes an error description. Malformed input is kept as
// the message so nothing script reported is lost.
func ParseErrorInfo(payload string) ErrorInfo {
	var info ErrorInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return ErrorInfo{Message: payload}
	}
	return info
}

type unconvertible struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Resolve turns a settled outcome into the call's value or error.
func Resolve(o bridge.Outcome) (any, error) {
	switch o.State {
	case bridge.Fulfilled:
		return codec.Decode([]byte(o.Payload))
	case bridge.Rejected:
		return nil, ParseErrorInfo(o.Payload).RuntimeError()
	case bridge.Unconvertible:
		var u unconvertible
		if err := json.Unmarshal([]byte(o.Payload), &u); err != nil {
			return nil, &core.ConversionError{Direction: core.DirDecode, Path: "result", Reason: o.Payload}
		}
		return nil, &core.ConversionError{Direction: core.DirDecode, Path: u.Path, Reason: u.Reason}
	default:
		return nil, fmt.Errorf("unknown settlement state %q", o.State)
	}
}
