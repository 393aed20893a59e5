package supervise

// binaryNotFoundError signals that no llama-server executable could be
// located anywhere in the search order.
type binaryNotFoundError struct{}

func (binaryNotFoundError) Error() string {
	return "llama-server binary not found: install llama.cpp or set server.binary_path in the config"
}

// IsBinaryNotFound reports whether err indicates a missing server binary.
func IsBinaryNotFound(err error) bool {
	_, ok := err.(binaryNotFoundError)
	return ok
}

// modelMissingError signals that no model is configured at all.
type modelMissingError struct{}

func (modelMissingError) Error() string {
	return "no model configured: place .gguf files in the model directory and set server.model_path, or pass a model override"
}

// IsModelMissing reports whether err indicates an unset model path.
func IsModelMissing(err error) bool {
	_, ok := err.(modelMissingError)
	return ok
}

// modelNotFoundError signals that the resolved model path does not exist.
type modelNotFoundError struct{ path string }

func (e modelNotFoundError) Error() string {
	return "model file not found: " + e.path + ": select an available model"
}

// IsModelNotFound reports whether err indicates a missing model file.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// startFailedError signals that the spawned process exited before becoming
// healthy. Excerpt carries the head of captured stderr, truncated.
type startFailedError struct{ excerpt string }

func (e startFailedError) Error() string {
	if e.excerpt == "" {
		return "server failed to start"
	}
	return "server failed to start: " + e.excerpt
}

// IsStartFailed reports whether err indicates a pre-ready process exit.
func IsStartFailed(err error) bool {
	_, ok := err.(startFailedError)
	return ok
}

// stopFailedError signals that neither a tracked handle nor the process scan
// could terminate a running server.
type stopFailedError struct{ msg string }

func (e stopFailedError) Error() string { return "could not stop server: " + e.msg }

// IsStopFailed reports whether err indicates a failed termination attempt.
func IsStopFailed(err error) bool {
	_, ok := err.(stopFailedError)
	return ok
}
