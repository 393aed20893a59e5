// Package daemon composes the orchestrator pieces (locator, supervisor,
// inference client, streaming coordinator) into the service surface exposed
// over HTTP and the CLI. All collaborators are explicit instances passed in
// by the caller; there is no package-level shared state.
package daemon

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog"

	"llamad/internal/config"
	"llamad/internal/llm"
	"llamad/internal/locate"
	"llamad/internal/stream"
	"llamad/internal/supervise"
	"llamad/pkg/types"
)

// Daemon implements httpapi.Service.
type Daemon struct {
	cfg       config.Config
	sup       *supervise.Supervisor
	client    *llm.Client
	coord     *stream.Coordinator
	logger    zerolog.Logger
	startTime time.Time
}

// New wires a Daemon from its collaborators. The client must target the
// configured server port; the supervisor should use the same client as its
// prober so "running" means the same thing everywhere.
func New(cfg config.Config, sup *supervise.Supervisor, client *llm.Client, logger zerolog.Logger) *Daemon {
	return &Daemon{
		cfg:       cfg,
		sup:       sup,
		client:    client,
		coord:     stream.New(client, stream.WithLogger(logger)),
		logger:    logger,
		startTime: time.Now(),
	}
}

// Models rescans the configured model directory on every call; contents may
// change between passes.
func (d *Daemon) Models() []types.ModelDescriptor {
	return locate.FindModels(d.cfg.Server.ModelDir)
}

// Status reports the orchestrator view of the managed server.
func (d *Daemon) Status(ctx context.Context) types.StatusResponse {
	pid, model := d.sup.Tracked()
	now := time.Now()
	return types.StatusResponse{
		Running:        d.sup.IsRunning(ctx),
		State:          string(d.sup.State()),
		PID:            pid,
		Port:           d.cfg.Server.Port,
		Model:          model,
		UptimeSeconds:  int64(now.Sub(d.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		Defaults: types.GenerationDefaults{
			Temperature:   d.cfg.Server.Temperature,
			MaxTokens:     d.cfg.Server.MaxTokens,
			TopP:          d.cfg.Server.TopP,
			TopK:          d.cfg.Server.TopK,
			RepeatPenalty: d.cfg.Server.RepeatPenalty,
		},
	}
}

// Running reports whether a managed or reachable server is up.
func (d *Daemon) Running(ctx context.Context) bool {
	return d.sup.IsRunning(ctx)
}

// StartServer starts the managed server, optionally with a model override.
func (d *Daemon) StartServer(ctx context.Context, modelOverride string) (supervise.StartResult, error) {
	return d.sup.Start(ctx, modelOverride)
}

// StopServer stops the managed server.
func (d *Daemon) StopServer(ctx context.Context) error {
	return d.sup.Stop(ctx)
}

// chunkLine is one NDJSON line of a streamed generation.
type chunkLine struct {
	Chunk   string `json:"chunk,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Generate runs one generation request. Non-streaming requests write a
// single JSON object; streaming requests write NDJSON chunk lines followed
// by a terminal line carrying the full text. An error before any output is
// returned to the caller for status mapping; after output has started it is
// reported in-band as a terminal error line.
func (d *Daemon) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = d.cfg.Server.MaxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = d.cfg.Server.Temperature
	}

	if !req.Stream {
		text, err := d.client.Generate(ctx, req.Prompt, maxTokens, temperature)
		if err != nil {
			return err
		}
		return json.NewEncoder(w).Encode(types.GenerateResponse{Content: text})
	}

	job := d.coord.Submit(ctx, types.GenerationRequest{
		Prompt:      req.Prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      true,
	})
	defer job.Cancel()

	enc := json.NewEncoder(w)
	wrote := false
	for chunk := range job.Chunks {
		if err := enc.Encode(chunkLine{Chunk: chunk}); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		wrote = true
	}
	res := <-job.Done
	if res.Err != nil {
		if !wrote {
			return res.Err
		}
		// Chunks already reached the client and stay valid; report the
		// failure in-band instead of a late status code.
		_ = enc.Encode(chunkLine{Error: res.Err.Error()})
		if flush != nil {
			flush()
		}
		return nil
	}
	if err := enc.Encode(chunkLine{Done: true, Content: res.Text}); err != nil {
		return err
	}
	if flush != nil {
		flush()
	}
	return nil
}
