package transcribe

import "fmt"

// ModelLoadError is fatal for the session: the UI keeps model-dependent
// controls disabled until the user explicitly restarts. It is never retried
// automatically.
type ModelLoadError struct {
	Err error
}

// Error formats the load failure.
func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load transcription model: %v", e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// InferenceError reports a failed transcription call. The loaded capability
// stays cached and usable for the next job.
type InferenceError struct {
	Err error
}

// Error formats the inference failure.
func (e *InferenceError) Error() string {
	return fmt.Sprintf("run transcription: %v", e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *InferenceError) Unwrap() error {
	return e.Err
}
