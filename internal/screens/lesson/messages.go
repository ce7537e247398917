package lesson

import (
	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/session"
)

// streamUpdateMsg is sent when the curriculum snapshot has changed.
type streamUpdateMsg struct {
	handle *curriculum.Handle
}

// gradedMsg carries the outcome of a submitted answer.
type gradedMsg struct {
	Result session.Result
}
