package httpserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/prav10140/Shiksha-Sarthi/internal/ai"
	"github.com/prav10140/Shiksha-Sarthi/internal/attendance"
	"github.com/prav10140/Shiksha-Sarthi/internal/geo"
	"github.com/prav10140/Shiksha-Sarthi/internal/quiz"
	"github.com/prav10140/Shiksha-Sarthi/internal/session"
	"github.com/prav10140/Shiksha-Sarthi/internal/speech"
	"github.com/prav10140/Shiksha-Sarthi/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The portal frontend is served from another origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *handler) health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *handler) classInfo(c echo.Context) error {
	classID := c.Param("classId")
	class, err := h.deps.Store.Class(c.Request().Context(), classID)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "class not found")
	}
	if err != nil {
		return err
	}
	students, err := h.deps.Store.StudentsByClass(c.Request().Context(), classID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"class": class, "students": students})
}

func (h *handler) startTool(c echo.Context) error {
	s := h.live(c.Param("classId"))
	err := s.controller.Start(session.Tool(c.Param("tool")))
	switch {
	case errors.Is(err, session.ErrUnknownTool):
		return echo.NewHTTPError(http.StatusBadRequest, "tool must be quick or full")
	case errors.Is(err, session.ErrToolBusy):
		return echo.NewHTTPError(http.StatusConflict, "another capture is in progress")
	case errors.Is(err, speech.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, "microphone access denied")
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "recording"})
}

func (h *handler) stopTool(c echo.Context) error {
	s := h.live(c.Param("classId"))
	// Generation continues past this request's lifetime.
	if err := s.controller.Stop(h.baseCtx); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "processing"})
}

func (h *handler) toolResult(c echo.Context) error {
	s := h.live(c.Param("classId"))
	tool := session.Tool(c.Param("tool"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.errors[tool]; ok {
		return c.JSON(http.StatusOK, map[string]string{"status": "error", "error": msg})
	}
	if art, ok := s.results[tool]; ok {
		return c.JSON(http.StatusOK, map[string]any{"status": "done", "artifact": art})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "pending"})
}

func (h *handler) liveTranscript(c echo.Context) error {
	s := h.live(c.Param("classId"))
	return c.JSON(http.StatusOK, map[string]string{"transcript": s.engine.Buffer().Live()})
}

// audioFeed accepts binary PCM frames over WebSocket and forwards them to
// the class's active recognizer.
func (h *handler) audioFeed(c echo.Context) error {
	s := h.live(c.Param("classId"))
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		if msgType == websocket.BinaryMessage {
			s.engine.FeedAudio(data)
		}
	}
}

func (h *handler) generateQuiz(c echo.Context) error {
	s := h.live(c.Param("classId"))
	art, err := s.controller.GenerateQuiz(c.Request().Context())
	switch {
	case errors.Is(err, session.ErrNoSpeech):
		return echo.NewHTTPError(http.StatusBadRequest, "record a session first")
	case errors.Is(err, ai.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, "quiz generation already in progress")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, "quiz generation failed")
	}

	questions, err := quiz.Parse(art.Content)
	if errors.Is(err, quiz.ErrEmptyQuiz) {
		return echo.NewHTTPError(http.StatusBadGateway, "quiz content is empty or invalid")
	}
	return c.JSON(http.StatusOK, map[string]any{"artifact": art, "questions": questions})
}

type sendMaterialRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func (h *handler) sendMaterial(c echo.Context) error {
	classID := c.Param("classId")
	var req sendMaterialRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	kind := ai.Kind(req.Kind)
	if kind != ai.KindSummary && kind != ai.KindQuiz {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be summary or quiz")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is empty")
	}

	ctx := c.Request().Context()
	class, err := h.deps.Store.Class(ctx, classID)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "class not found")
	}
	if err != nil {
		return err
	}
	students, err := h.deps.Store.StudentsByClass(ctx, classID)
	if err != nil {
		return err
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}

	art := ai.Artifact{Kind: kind, Content: req.Content}
	if err := h.deps.Distributor.Send(ctx, classID, class.Batch, ids, art); err != nil {
		log.Printf("httpserver: send material failed: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, "failed to send to students")
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "sent", "students": len(ids)})
}

// deviceFix carries the caller's geolocation outcome: either a position or
// the fact that the device refused to share one.
type deviceFix struct {
	Latitude       float64 `json:"lat"`
	Longitude      float64 `json:"lng"`
	LocationDenied bool    `json:"locationDenied"`
}

// locator turns the request's device fix into the geolocation capability
// the attendance service expects.
func (f deviceFix) locator() geo.Locator {
	if f.LocationDenied {
		return geo.Fixed(geo.Position{}, geo.ErrPermissionDenied)
	}
	return geo.Fixed(geo.Position{Latitude: f.Latitude, Longitude: f.Longitude}, nil)
}

func (h *handler) startAttendance(c echo.Context) error {
	var fix deviceFix
	if err := c.Bind(&fix); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	svc := attendance.NewService(h.deps.Store, fix.locator())
	err := svc.Start(c.Request().Context(), c.Param("classId"))
	if errors.Is(err, geo.ErrPermissionDenied) {
		return echo.NewHTTPError(http.StatusForbidden, "location access denied")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "started"})
}

func (h *handler) endAttendance(c echo.Context) error {
	svc := attendance.NewService(h.deps.Store, nil)
	err := svc.End(c.Request().Context(), c.Param("classId"))
	if errors.Is(err, attendance.ErrNoSession) {
		return echo.NewHTTPError(http.StatusNotFound, "attendance not started")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ended"})
}

type markAttendanceRequest struct {
	StudentID string `json:"studentId"`
	deviceFix
}

func (h *handler) markAttendance(c echo.Context) error {
	var req markAttendanceRequest
	if err := c.Bind(&req); err != nil || req.StudentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "studentId is required")
	}

	svc := attendance.NewService(h.deps.Store, req.locator())
	err := svc.MarkPresent(c.Request().Context(), c.Param("classId"), req.StudentID)
	switch {
	case errors.Is(err, attendance.ErrNoSession):
		return echo.NewHTTPError(http.StatusNotFound, "attendance not started")
	case errors.Is(err, attendance.ErrClosed):
		return echo.NewHTTPError(http.StatusConflict, "attendance closed")
	case errors.Is(err, attendance.ErrOutsideGeofence):
		// A deliberate rejection with explanation, not a server fault.
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "you are outside the classroom")
	case errors.Is(err, geo.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, "location access denied")
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "marked"})
}

// watchAttendance streams present-list updates over WebSocket as they
// occur.
func (h *handler) watchAttendance(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := c.Request().Context()
	svc := attendance.NewService(h.deps.Store, nil)
	rosters, err := svc.Watch(ctx, c.Param("classId"))
	if err != nil {
		return nil
	}
	for roster := range rosters {
		if err := conn.WriteJSON(roster); err != nil {
			return nil
		}
	}
	return nil
}
