package server

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/lessonstream/internal/grading"
)

type generateRequest struct {
	Query            string `json:"query" binding:"required"`
	NumberOfSections int    `json:"numberOfSections" binding:"omitempty,min=1,max=50"`
}

// generateCurriculum relays the model's raw text as it arrives. Clients
// decode it themselves.
func (s *Server) generateCurriculum(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	total := s.cfg.Session(req.NumberOfSections).TotalSections

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	ch, err := s.deps.Curriculum.OpenRaw(ctx, req.Query, total)
	if err != nil {
		respondUpstream(c, err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return false
			}
			if chunk.Err != nil {
				s.log.Warn("curriculum stream failed", "topic", req.Query, "error", chunk.Err)
				return false
			}
			if chunk.Text != "" {
				if _, err := io.WriteString(w, chunk.Text); err != nil {
					return false
				}
			}
			return !chunk.Done
		case <-ctx.Done():
			return false
		}
	})
}

type checkAnswerRequest struct {
	Question       string   `json:"question" binding:"required"`
	UserAnswer     string   `json:"userAnswer"`
	ExpectedAnswer string   `json:"expectedAnswer"`
	Choices        []string `json:"choices"`
}

func (s *Server) checkAnswer(c *gin.Context) {
	var req checkAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Grading.Timeout)
	defer cancel()
	verdict, err := s.deps.Grader.Grade(ctx, grading.Request{
		Question:       req.Question,
		UserAnswer:     req.UserAnswer,
		ExpectedAnswer: req.ExpectedAnswer,
		Choices:        req.Choices,
	})
	if err != nil {
		respondUpstream(c, err)
		return
	}
	RespondOK(c, verdict)
}
