package session

import (
	"encoding/json"
	"strings"
)

// -----------------------------------------------------------------------------

// OnMessageAsync takes one inbound text frame off the transport and posts it
// onto the strand. token is the session token the transport extracted
// alongside the frame (stateless transports carry it on every request).
func (s *Session) OnMessageAsync(msg string, token string) {
	s.post(func() { s.OnMessageSync(msg, token) })
}

// -----------------------------------------------------------------------------

// OnMessageSync parses, validates and routes one frame. Runs on the strand.
func (s *Session) OnMessageSync(msg string, token string) {
	if msg == "h" {
		s.send("h")
		return
	}

	dec := json.NewDecoder(strings.NewReader(msg))
	dec.UseNumber()
	var root interface{}
	if err := dec.Decode(&root); err != nil {
		s.logger.Debug("%s: invalid json string: %s", s.transport.RemoteAddress(), msg)
		s.sendJSON("error", "json", msg, "invalid json string")
		return
	}
	frame, ok := root.([]interface{})
	if !ok || len(frame) == 0 {
		s.logger.Debug("%s: json error: %s", s.transport.RemoteAddress(), msg)
		s.sendJSON("error", "json", msg, "json error: frame must be a non-empty array")
		return
	}
	action, err := getString(frame[0])
	if err != nil {
		s.sendJSON("error", "json", msg, "json error: "+err.Error())
		return
	}
	if action == "" {
		s.logger.Debug("%s: empty action: %s", s.transport.RemoteAddress(), msg)
		s.sendJSON("error", "msg", "action", "empty action")
		return
	}

	// Anonymous sessions handle only login and validate_user. Any other
	// action first tries to adopt the user behind the presented token.
	if action != "login" && action != "validate_user" && s.user == nil {
		s.user = s.deps.Tokens.Lookup(token)
		if s.user == nil {
			s.sendJSON("error", "msg", "action", "you must login first")
			return
		}
	}

	if err := s.dispatch(action, frame, msg); err != nil {
		s.logger.Debug("%s: OnMessage: %v, %s", s.transport.RemoteAddress(), err, msg)
		s.sendJSON("error", "OnMessage", msg, err.Error())
	}
}

// -----------------------------------------------------------------------------

// dispatch routes an authenticated (or login) frame to its handler. A
// returned error is a parse, type or domain failure the central guard turns
// into an error frame; handlers with action-specific error frames emit those
// themselves and return nil.
func (s *Session) dispatch(action string, frame []interface{}, msg string) error {
	switch action {
	case "login", "validate_user":
		return s.onLogin(action, frame)
	case "bod":
		return s.onBod()
	case "reconnect":
		return s.onReconnect(frame)
	case "securities":
		return s.onSecurities()
	case "position":
		return s.onPosition(frame, msg)
	case "offline":
		return s.onOffline(frame)
	case "shutdown":
		return s.onShutdown(frame)
	case "cancel":
		return s.onCancel(frame, msg)
	case "order":
		return s.onOrder(frame, msg)
	case "algo":
		return s.onAlgo(frame, msg)
	case "pnl":
		return s.onPnl(frame)
	case "sub":
		return s.onSub(frame)
	case "unsub":
		return s.onUnsub(frame)
	case "algoFile":
		return s.onAlgoFile(frame)
	case "deleteAlgoFile":
		return s.onDeleteAlgoFile(frame)
	case "saveAlgoFile":
		return s.onSaveAlgoFile(frame)
	}
	// unknown actions are ignored
	return nil
}

// at returns frame[i], or nil when the frame is shorter. The typed getters
// reject nil with a descriptive error, so short frames surface as type
// failures instead of panics.
func at(frame []interface{}, i int) interface{} {
	if i < len(frame) {
		return frame[i]
	}
	return nil
}
