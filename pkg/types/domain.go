package types

import "path/filepath"

// ServerConfig is an immutable snapshot of the managed llama-server
// configuration. Fields are read once per Start; changing them while a
// process is running takes effect only after a restart.
type ServerConfig struct {
	// Path to the llama-server binary. Empty means auto-detect.
	BinaryPath string `json:"binary_path,omitempty" yaml:"binary_path" toml:"binary_path"`
	// Path to the model file served by default.
	ModelPath string `json:"model_path,omitempty" yaml:"model_path" toml:"model_path"`
	// Directory scanned for *.gguf model files.
	ModelDir string `json:"model_dir,omitempty" yaml:"model_dir" toml:"model_dir"`
	// TCP port the server listens on.
	Port int `json:"port" yaml:"port" toml:"port"`
	// Context window size passed as --ctx-size.
	ContextSize int `json:"context_size" yaml:"context_size" toml:"context_size"`
	// Layers offloaded to the GPU; 0 means CPU-only and omits the flag.
	GPULayers int `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`

	// Generation defaults applied when a request leaves them unset.
	Temperature   float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	TopP          float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	TopK          int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	RepeatPenalty float64 `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
}

// ModelDescriptor describes a model file found on disk. It is derived purely
// from a filesystem stat and never cached across discovery passes.
type ModelDescriptor struct {
	// Absolute path to the model file.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Display name: the file name without extension.
	// example: TinyLlama.Q4_K_M
	Name string `json:"name" example:"TinyLlama.Q4_K_M"`
	// File size in bytes.
	// example: 668788096
	SizeBytes int64 `json:"size_bytes" example:"668788096"`
}

// NewModelDescriptor builds a descriptor from a path and a stat size.
func NewModelDescriptor(path string, size int64) ModelDescriptor {
	base := filepath.Base(path)
	name := base[:len(base)-len(filepath.Ext(base))]
	return ModelDescriptor{Path: path, Name: name, SizeBytes: size}
}

// GenerationRequest is a stateless value describing one generation call.
// One request produces exactly one logical response, either an aggregate
// string or an ordered chunk stream.
type GenerationRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Stream      bool
}
