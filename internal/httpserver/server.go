// Package httpserver exposes the live-session, attendance and tutor
// subsystems over HTTP and WebSocket.
package httpserver

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/prav10140/Shiksha-Sarthi/internal/ai"
	"github.com/prav10140/Shiksha-Sarthi/internal/materials"
	"github.com/prav10140/Shiksha-Sarthi/internal/session"
	"github.com/prav10140/Shiksha-Sarthi/internal/speech"
	"github.com/prav10140/Shiksha-Sarthi/internal/store"
	"github.com/prav10140/Shiksha-Sarthi/internal/tts"
)

// Deps bundles the subsystems the server fronts.
type Deps struct {
	Store         store.Store
	Orchestrator  *ai.Orchestrator
	Distributor   *materials.Distributor
	SpeechFactory speech.Factory
	Synth         tts.Synthesizer
	SettleDelay   time.Duration
}

type handler struct {
	deps Deps
	// baseCtx outlives individual requests; generation dispatched after a
	// Stop must not die with the triggering request.
	baseCtx context.Context

	mu    sync.Mutex
	lives map[string]*liveSession
}

// liveSession is the per-class capture state: one engine, one controller,
// and the latest outcome per tool.
type liveSession struct {
	engine     *speech.Engine
	controller *session.Controller

	mu      sync.Mutex
	results map[session.Tool]ai.Artifact
	errors  map[session.Tool]string
}

// New builds the configured echo instance.
func New(ctx context.Context, deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := &handler{deps: deps, baseCtx: ctx, lives: make(map[string]*liveSession)}

	e.GET("/healthz", h.health)

	e.GET("/classes/:classId", h.classInfo)
	e.POST("/classes/:classId/tools/:tool/start", h.startTool)
	e.POST("/classes/:classId/tools/stop", h.stopTool)
	e.GET("/classes/:classId/tools/:tool/result", h.toolResult)
	e.GET("/classes/:classId/transcript", h.liveTranscript)
	e.GET("/classes/:classId/audio", h.audioFeed)
	e.POST("/classes/:classId/quiz", h.generateQuiz)
	e.POST("/classes/:classId/materials/send", h.sendMaterial)

	e.POST("/classes/:classId/attendance/start", h.startAttendance)
	e.POST("/classes/:classId/attendance/end", h.endAttendance)
	e.POST("/classes/:classId/attendance/mark", h.markAttendance)
	e.GET("/classes/:classId/attendance/watch", h.watchAttendance)

	e.GET("/tutor/ws", h.tutorSocket)

	return e
}

// live returns (creating on first use) the capture session for a class.
func (h *handler) live(classID string) *liveSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.lives[classID]; ok {
		return s
	}

	s := &liveSession{
		results: make(map[session.Tool]ai.Artifact),
		errors:  make(map[session.Tool]string),
	}
	s.engine = speech.NewEngine(h.deps.SpeechFactory, "en-US", speech.Hooks{})
	s.controller = session.NewController(classID, s.engine, h.deps.Orchestrator, h.deps.SettleDelay, session.Hooks{
		OnResult: func(tool session.Tool, art ai.Artifact) {
			s.mu.Lock()
			s.results[tool] = art
			delete(s.errors, tool)
			s.mu.Unlock()
		},
		OnError: func(tool session.Tool, err error) {
			s.mu.Lock()
			s.errors[tool] = err.Error()
			s.mu.Unlock()
		},
	})
	h.lives[classID] = s
	return s
}
