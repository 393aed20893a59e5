package llm

// serverUnreachableError signals that no connection could be made to the
// llama-server. Distinct from a timeout: the server is presumed down.
type serverUnreachableError struct{ baseURL string }

func (e serverUnreachableError) Error() string {
	return "cannot connect to LLM server at " + e.baseURL + ": start the server and retry"
}

// IsServerUnreachable reports whether err indicates a refused/reset connection.
func IsServerUnreachable(err error) bool {
	_, ok := err.(serverUnreachableError)
	return ok
}

// requestTimeoutError signals that the server accepted the connection but did
// not answer within the request deadline. The model may still be loading or
// the prompt may be too long.
type requestTimeoutError struct{}

func (requestTimeoutError) Error() string {
	return "request timed out: the model may be loading or the prompt is too long, try again"
}

// IsRequestTimeout reports whether err indicates a slow-but-reachable server.
func IsRequestTimeout(err error) bool {
	_, ok := err.(requestTimeoutError)
	return ok
}

// generationError wraps any other transport-level failure of a generation
// request.
type generationError struct{ cause error }

func (e generationError) Error() string { return "generation failed: " + e.cause.Error() }

func (e generationError) Unwrap() error { return e.cause }

// IsGenerationFailure reports whether err is a generic generation failure.
func IsGenerationFailure(err error) bool {
	_, ok := err.(generationError)
	return ok
}
