package core

// Recorder receives reconciliation events for instrumentation.
type Recorder interface {
	Submitted()
	SubmissionFailed(stage string)
	// Confirmed is called when a pending message is retired; match is "id"
	// or "query".
	Confirmed(match string, errored bool)
	Adopted()
	Pending(n int)
	FeedDisconnected()
}

type nopRecorder struct{}

func (nopRecorder) Submitted()              {}
func (nopRecorder) SubmissionFailed(string) {}
func (nopRecorder) Confirmed(string, bool)  {}
func (nopRecorder) Adopted()                {}
func (nopRecorder) Pending(int)             {}
func (nopRecorder) FeedDisconnected()       {}
