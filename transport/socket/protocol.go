package socket

import (
	"encoding/json"

	"github.com/antarasi/authgate"
	goerrors "github.com/goliatone/go-errors"
)

// Frame types a client may send
const (
	FrameAuthenticate = "authenticate"
	FrameLogout       = "logout"
	FrameCall         = "call"
)

// Frame is one client request. ID is echoed back on the reply so the
// client can match them.
type Frame struct {
	ID         uint64            `json:"id"`
	Type       string            `json:"type"`
	Path       string            `json:"path,omitempty"`
	Method     string            `json:"method,omitempty"`
	ResourceID string            `json:"resourceId,omitempty"`
	Data       json.RawMessage   `json:"data,omitempty"`
	Query      map[string]string `json:"query,omitempty"`
}

// Reply answers exactly one Frame. Error is nil on success.
type Reply struct {
	ID     uint64              `json:"id"`
	Error  *authgate.WireError `json:"error"`
	Result any                 `json:"result,omitempty"`
}

var errBadFrame = goerrors.New("Invalid frame", goerrors.CategoryBadInput).
	WithTextCode(authgate.KindBadRequest).
	WithCode(goerrors.CodeBadRequest)

var errUnknownFrame = goerrors.New("Unknown frame type", goerrors.CategoryBadInput).
	WithTextCode(authgate.KindBadRequest).
	WithCode(goerrors.CodeBadRequest)

func decodeFrame(raw []byte) (*Frame, error) {
	frame := &Frame{}
	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, errBadFrame
	}
	return frame, nil
}

func newReply(id uint64, result any, err error) *Reply {
	if err != nil {
		return &Reply{ID: id, Error: authgate.ToWireError(err)}
	}
	return &Reply{ID: id, Result: result}
}

// profile lets a login result stand in as the bound identity
type profile struct {
	p authgate.Profile
}

func (p profile) ID() string    { return p.p.ID }
func (p profile) Email() string { return p.p.Email }
