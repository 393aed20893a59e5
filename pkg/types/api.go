package types

// GenerateRequest is the payload accepted by POST /generate.
type GenerateRequest struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// If true, stream results as NDJSON chunks.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Maximum number of new tokens to generate; 0 uses the configured default.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random); 0 uses the configured default.
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
}

// GenerateResponse is returned by POST /generate when streaming is off.
type GenerateResponse struct {
	// Full generated text.
	Content string `json:"content"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Models discovered under the configured model directory.
	Models []ModelDescriptor `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StartRequest is the payload accepted by POST /server/start.
type StartRequest struct {
	// Optional model path overriding the configured default for this start.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Model string `json:"model,omitempty" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
}

// StartResponse is returned by POST /server/start and /server/stop.
type StartResponse struct {
	// Outcome status (started, still_starting, already_running, stopped, not_running).
	// example: started
	Status string `json:"status" example:"started"`
	// Human-readable detail, including remediation hints on failure paths.
	Message string `json:"message,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Whether a managed or reachable llama-server is up.
	// example: true
	Running bool `json:"running" example:"true"`
	// Supervisor lifecycle state (stopped, starting, running, stopping).
	// example: running
	State string `json:"state" example:"running"`
	// Process ID of the tracked server, 0 when no handle is held.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// TCP port the managed server listens on.
	// example: 8080
	Port int `json:"port" example:"8080"`
	// Model path the server was started with, if tracked.
	Model string `json:"model,omitempty"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Daemon time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Generation defaults applied when a request leaves the fields unset.
	Defaults GenerationDefaults `json:"defaults"`
}

// GenerationDefaults echoes the configured sampling defaults in GET /status.
type GenerationDefaults struct {
	// example: 0.7
	Temperature float64 `json:"temperature" example:"0.7"`
	// example: 512
	MaxTokens int `json:"max_tokens" example:"512"`
	// example: 1.0
	TopP float64 `json:"top_p" example:"1.0"`
	// example: 40
	TopK int `json:"top_k" example:"40"`
	// example: 1.1
	RepeatPenalty float64 `json:"repeat_penalty" example:"1.1"`
}
