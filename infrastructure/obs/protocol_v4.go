package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tourney-media/domain/mixer"

	"github.com/gorilla/websocket"
)

// v4AuthFailed is the error text 4.x returns for a rejected password
const v4AuthFailed = "Authentication Failed."

// protocolV4 speaks obs-websocket 4.x. Requests and responses are flat JSON
// objects correlated by "message-id"; events carry "update-type".
type protocolV4 struct{}

func (protocolV4) name() string { return "v4" }

func (p protocolV4) handshake(ctx context.Context, conn *websocket.Conn, password string) error {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	required, err := p.call(conn, "GetAuthRequired", nil)
	if err != nil {
		return err
	}

	var auth struct {
		AuthRequired bool   `json:"authRequired"`
		Challenge    string `json:"challenge"`
		Salt         string `json:"salt"`
	}
	if err := json.Unmarshal(required, &auth); err != nil {
		return fmt.Errorf("invalid GetAuthRequired response: %w", err)
	}
	if !auth.AuthRequired {
		return nil
	}
	if password == "" {
		return fmt.Errorf("%w: server requires a password", mixer.ErrAuthentication)
	}

	_, err = p.call(conn, "Authenticate", map[string]any{
		"auth": authResponse(password, auth.Salt, auth.Challenge),
	})
	return err
}

// call performs one synchronous request during the handshake
func (p protocolV4) call(conn *websocket.Conn, request string, args any) (json.RawMessage, error) {
	id := "handshake-" + strings.ToLower(request)
	data, err := p.encodeRequest(id, request, args)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, fmt.Errorf("sending %s: %w", request, err)
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", request, err)
		}
		msg, err := p.decode(frame)
		if err != nil {
			return nil, fmt.Errorf("invalid %s response: %w", request, err)
		}
		if msg.isEvent || msg.id != id {
			continue
		}
		if msg.err != nil {
			if re, ok := msg.err.(*RequestError); ok && re.Comment == v4AuthFailed {
				return nil, fmt.Errorf("%w: %s", mixer.ErrAuthentication, re.Comment)
			}
			return nil, msg.err
		}
		return msg.data, nil
	}
}

func (protocolV4) encodeRequest(id, request string, args any) ([]byte, error) {
	fields := map[string]any{}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("4.x request arguments must be an object: %w", err)
		}
	}
	fields["request-type"] = request
	fields["message-id"] = id
	return json.Marshal(fields)
}

func (protocolV4) decode(data []byte) (incoming, error) {
	var head struct {
		UpdateType string `json:"update-type"`
		MessageID  string `json:"message-id"`
		Status     string `json:"status"`
		Error      string `json:"error"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return incoming{}, err
	}

	if head.UpdateType != "" {
		return incoming{isEvent: true, event: head.UpdateType, data: json.RawMessage(data)}, nil
	}
	if head.MessageID == "" {
		return incoming{}, fmt.Errorf("frame has neither update-type nor message-id")
	}

	msg := incoming{id: head.MessageID, data: json.RawMessage(data)}
	if head.Status == "error" {
		msg.err = &RequestError{Comment: head.Error}
	}
	return msg, nil
}
