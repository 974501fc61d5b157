package obs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tourney-media/domain/mixer"

	"github.com/gorilla/websocket"
)

// obs-websocket 5.x opcodes
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

// closeAuthenticationFailed is the 5.x close code for a bad password
const closeAuthenticationFailed = 4009

// rpcVersion is the 5.x RPC version this client speaks
const rpcVersion = 1

const handshakeTimeout = 5 * time.Second

type v5Frame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type v5Hello struct {
	OBSWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type v5Identify struct {
	RPCVersion     int    `json:"rpcVersion"`
	Authentication string `json:"authentication,omitempty"`
}

type v5Request struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type v5Response struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

type v5Event struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

// protocolV5 speaks obs-websocket 5.x
type protocolV5 struct{}

func (protocolV5) name() string { return "v5" }

func (protocolV5) handshake(ctx context.Context, conn *websocket.Conn, password string) error {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	var frame v5Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return fmt.Errorf("waiting for hello: %w", err)
	}
	if frame.Op != opHello {
		return fmt.Errorf("expected hello (op %d), got op %d", opHello, frame.Op)
	}

	var hello v5Hello
	if err := json.Unmarshal(frame.D, &hello); err != nil {
		return fmt.Errorf("invalid hello: %w", err)
	}

	identify := v5Identify{RPCVersion: rpcVersion}
	if hello.Authentication != nil {
		if password == "" {
			return fmt.Errorf("%w: server requires a password", mixer.ErrAuthentication)
		}
		identify.Authentication = authResponse(password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}

	d, err := json.Marshal(identify)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(v5Frame{Op: opIdentify, D: d}); err != nil {
		return fmt.Errorf("sending identify: %w", err)
	}

	if err := conn.ReadJSON(&frame); err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == closeAuthenticationFailed {
			return fmt.Errorf("%w: %s", mixer.ErrAuthentication, closeErr.Text)
		}
		return fmt.Errorf("waiting for identified: %w", err)
	}
	if frame.Op != opIdentified {
		return fmt.Errorf("expected identified (op %d), got op %d", opIdentified, frame.Op)
	}
	return nil
}

func (protocolV5) encodeRequest(id, request string, args any) ([]byte, error) {
	d, err := json.Marshal(v5Request{RequestType: request, RequestID: id, RequestData: args})
	if err != nil {
		return nil, err
	}
	return json.Marshal(v5Frame{Op: opRequest, D: d})
}

func (protocolV5) decode(data []byte) (incoming, error) {
	var frame v5Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return incoming{}, err
	}

	switch frame.Op {
	case opEvent:
		var ev v5Event
		if err := json.Unmarshal(frame.D, &ev); err != nil {
			return incoming{}, err
		}
		return incoming{isEvent: true, event: ev.EventType, data: ev.EventData}, nil

	case opRequestResponse:
		var resp v5Response
		if err := json.Unmarshal(frame.D, &resp); err != nil {
			return incoming{}, err
		}
		msg := incoming{id: resp.RequestID, data: resp.ResponseData}
		if !resp.RequestStatus.Result {
			msg.err = &RequestError{
				Request: resp.RequestType,
				Code:    resp.RequestStatus.Code,
				Comment: resp.RequestStatus.Comment,
			}
		}
		if len(msg.data) == 0 {
			msg.data = json.RawMessage(`{}`)
		}
		return msg, nil

	default:
		return incoming{}, fmt.Errorf("unexpected op %d", frame.Op)
	}
}
