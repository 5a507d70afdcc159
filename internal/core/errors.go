package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery          = errors.New("message is empty")
	ErrUnauthenticated     = errors.New("not authenticated")
	ErrBusy                = errors.New("a reply is still being generated")
	ErrNoConversation      = errors.New("no conversation is open")
	ErrConversationChanged = errors.New("active conversation changed")
)

const (
	StageCreateConversation = "create_conversation"
	StageCreateMessage      = "create_message"
)

// SubmissionError reports a failed create call. The optimistic entry, if any,
// has already been discarded when it is returned.
type SubmissionError struct {
	Stage string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
