package speech

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamRecognizer is a continuous recognizer backed by a streaming
// transcription service over WebSocket. Audio is fed as 16kHz little-endian
// PCM; the service answers with interim and end-of-turn transcripts.
type StreamRecognizer struct {
	apiKey   string
	locale   string
	endpoint string

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool

	events    chan Event
	audioData chan []byte
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// Begin/Turn/Termination/Error are the service's message envelope types.
type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	EndOfTurn  bool   `json:"end_of_turn"`
}

type terminationMessage struct {
	Type                 string  `json:"type"`
	AudioDurationSeconds float64 `json:"audio_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

const defaultStreamEndpoint = "wss://streaming.assemblyai.com/v3/ws"

// NewStreamRecognizer builds a recognizer for one locale. Each instance is
// single-use: a locale change means a new instance.
func NewStreamRecognizer(apiKey, locale string) *StreamRecognizer {
	return &StreamRecognizer{
		apiKey:    apiKey,
		locale:    locale,
		endpoint:  defaultStreamEndpoint,
		events:    make(chan Event, 100),
		audioData: make(chan []byte, 1000),
		stopCh:    make(chan struct{}),
	}
}

// StreamFactory returns a Factory producing StreamRecognizers with the
// given credentials.
func StreamFactory(apiKey string) Factory {
	return func(locale string) (Recognizer, error) {
		if apiKey == "" {
			return nil, fmt.Errorf("speech: streaming api key is empty")
		}
		return NewStreamRecognizer(apiKey, locale), nil
	}
}

// Events returns the recognition event stream. The channel closes after
// EventEnd or EventError.
func (s *StreamRecognizer) Events() <-chan Event { return s.events }

// Start dials the streaming service and begins reading transcripts.
func (s *StreamRecognizer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("encoding", "pcm_s16le")
	params.Set("language", s.locale)

	wsURL := fmt.Sprintf("%s?%s", s.endpoint, params.Encode())
	headers := map[string][]string{"Authorization": {s.apiKey}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: streaming service refused credentials", ErrPermissionDenied)
		}
		return fmt.Errorf("connect streaming service: %w", err)
	}

	s.conn = conn
	s.connected = true

	go s.readLoop()
	go s.writeLoop()

	log.Printf("speech: streaming session open (locale=%s)", s.locale)
	return nil
}

// SendAudio queues a PCM buffer for delivery. Buffers are dropped rather
// than blocking the capture path when the queue is full.
func (s *StreamRecognizer) SendAudio(pcm []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("speech: not connected")
	}
	select {
	case s.audioData <- pcm:
	default:
		log.Println("speech: audio queue full, dropping packet")
	}
	return nil
}

// Stop terminates the session. It is safe to call more than once.
func (s *StreamRecognizer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
			_ = s.conn.Close()
		}
		s.connected = false
		s.conn = nil
		s.mu.Unlock()
	})
}

// readLoop processes service messages until the socket closes, translating
// them into recognition events in arrival order.
func (s *StreamRecognizer) readLoop() {
	defer close(s.events)
	for {
		select {
		case <-s.stopCh:
			s.emit(Event{Type: EventEnd})
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			s.emit(Event{Type: EventEnd})
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
				s.emit(Event{Type: EventEnd})
			default:
				s.emit(Event{Type: EventError, Err: fmt.Errorf("streaming read: %w", err)})
			}
			return
		}
		if done := s.processMessage(message); done {
			return
		}
	}
}

// processMessage translates one service message into events. It reports
// true when the session is over.
func (s *StreamRecognizer) processMessage(message []byte) bool {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		log.Printf("speech: bad message: %v", err)
		return false
	}
	switch base.Type {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			log.Printf("speech: session began id=%s", msg.ID)
		}
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("speech: bad turn message: %v", err)
			return false
		}
		if msg.Transcript == "" {
			return false
		}
		if msg.EndOfTurn {
			s.emit(Event{Type: EventResult, Finals: []string{msg.Transcript}})
		} else {
			s.emit(Event{Type: EventResult, Provisional: msg.Transcript})
		}
	case "Termination":
		var msg terminationMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			log.Printf("speech: session terminated after %.2fs of audio", msg.AudioDurationSeconds)
		}
		s.emit(Event{Type: EventEnd})
		return true
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("speech: bad error message: %v", err)
			return false
		}
		s.emit(Event{Type: EventError, Err: fmt.Errorf("streaming service: %s", msg.Error)})
		return true
	default:
		log.Printf("speech: unknown message type %q", base.Type)
	}
	return false
}

func (s *StreamRecognizer) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-time.After(200 * time.Millisecond):
		log.Println("speech: event consumer stalled, dropping event")
	}
}

// writeLoop forwards queued audio to the service.
func (s *StreamRecognizer) writeLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		case pcm := <-s.audioData:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				log.Printf("speech: audio send failed: %v", err)
				return
			}
		}
	}
}
