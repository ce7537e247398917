package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/session"
)

// heartbeat keeps idle event streams open through proxies.
const heartbeat = 15 * time.Second

var errSessionNotFound = errors.New("session not found")

type createSessionRequest struct {
	Topic            string `json:"topic" binding:"required"`
	NumberOfSections int    `json:"numberOfSections" binding:"omitempty,min=1,max=50"`
}

type answerRequest struct {
	// Answer falls back to the stored input when nil.
	Answer *string `json:"answer"`
}

type inputRequest struct {
	Input string `json:"input"`
}

type actionResponse struct {
	Result session.Result `json:"result"`
	View   session.View   `json:"view"`
}

// snapshotEvent is the payload of a "snapshot" server-sent event.
type snapshotEvent struct {
	Snapshot *curriculum.Snapshot `json:"snapshot"`
	View     session.View         `json:"view"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	ctrl := session.NewController(s.Registry.NewID(), s.cfg.Session(req.NumberOfSections), session.Deps{
		Curriculum: s.deps.Curriculum,
		Grader:     s.deps.Grader,
		Events:     s.deps.Events,
		Log:        s.log,
	})
	if err := ctrl.RequestCurriculum(c.Request.Context(), req.Topic); err != nil {
		respondUpstream(c, err)
		return
	}
	s.Registry.Add(ctrl)
	c.JSON(http.StatusCreated, ctrl.View())
}

func (s *Server) lookup(c *gin.Context) (*session.Controller, bool) {
	ctrl, ok := s.Registry.Get(c.Param("id"))
	if !ok {
		RespondError(c, http.StatusNotFound, "not_found", errSessionNotFound)
	}
	return ctrl, ok
}

func (s *Server) getSession(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	RespondOK(c, ctrl.View())
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.Registry.Remove(c.Param("id")) {
		RespondError(c, http.StatusNotFound, "not_found", errSessionNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) submitAnswer(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	answer := ctrl.State().Input
	if req.Answer != nil {
		answer = *req.Answer
	}
	res := ctrl.SubmitAnswer(c.Request.Context(), answer)
	RespondOK(c, actionResponse{Result: res, View: ctrl.View()})
}

func (s *Server) skip(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	res := ctrl.Skip()
	RespondOK(c, actionResponse{Result: res, View: ctrl.View()})
}

func (s *Server) setInput(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctrl.SetInput(req.Input)
	RespondOK(c, ctrl.View())
}

// sessionEvents pushes a "snapshot" event whenever the curriculum grows and
// a final "complete" event once the stream has ended.
func (s *Server) sessionEvents(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	h := ctrl.Handle()
	if h == nil {
		RespondError(c, http.StatusConflict, "idle", errors.New("no curriculum has been requested"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	ctx := c.Request.Context()
	last := -1

	c.Stream(func(w io.Writer) bool {
		// Take the channel before reading so no update is missed.
		changed := h.Changed()
		snap := h.Snapshot()
		if snap.Version != last {
			last = snap.Version
			c.SSEvent("snapshot", snapshotEvent{Snapshot: snap, View: ctrl.View()})
		}
		if snap.Complete {
			c.SSEvent("complete", ctrl.View())
			return false
		}

		select {
		case <-changed:
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
}
