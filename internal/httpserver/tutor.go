package httpserver

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/prav10140/Shiksha-Sarthi/internal/tutor"
)

type tutorControl struct {
	Type   string `json:"type"` // "start" | "end" | "locale"
	Locale string `json:"locale,omitempty"`
}

type tutorUpdate struct {
	Type  string `json:"type"` // "state" | "caption" | "error"
	Value string `json:"value"`
}

// tutorSocket runs one tutor conversation per connection: JSON control
// messages and binary audio frames in, state and caption updates out.
func (h *handler) tutorSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var writeMu sync.Mutex
	push := func(u tutorUpdate) {
		writeMu.Lock()
		_ = conn.WriteJSON(u)
		writeMu.Unlock()
	}

	loop := tutor.NewEngineLoop(h.baseCtx, h.deps.Orchestrator, h.deps.Synth, h.deps.SpeechFactory, "en-US", tutor.Hooks{
		OnState:   func(s tutor.State) { push(tutorUpdate{Type: "state", Value: s.String()}) },
		OnCaption: func(text string) { push(tutorUpdate{Type: "caption", Value: text}) },
	})
	defer loop.End()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		switch msgType {
		case websocket.BinaryMessage:
			loop.FeedAudio(data)
		case websocket.TextMessage:
			var ctl tutorControl
			if err := json.Unmarshal(data, &ctl); err != nil {
				push(tutorUpdate{Type: "error", Value: "bad control message"})
				continue
			}
			switch ctl.Type {
			case "start":
				if err := loop.Start(); err != nil {
					push(tutorUpdate{Type: "error", Value: err.Error()})
				}
			case "end":
				loop.End()
			case "locale":
				if err := loop.SetLocale(ctl.Locale); err != nil {
					push(tutorUpdate{Type: "error", Value: err.Error()})
				}
			}
		}
	}
}
