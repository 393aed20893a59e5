// Package stream decouples slow generation calls from the caller's control
// flow: each request runs on its own goroutine and relays chunks over a
// channel as they arrive, with a single terminal result once the stream ends.
package stream

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llamad/pkg/types"
)

// Generator is the slice of the inference client the coordinator needs.
type Generator interface {
	GenerateStream(ctx context.Context, prompt string, maxTokens int, temperature float64, onToken func(string) error) error
}

// Result is the terminal outcome of a job: the full concatenated text, or an
// error. Chunks already delivered before a failure remain valid.
type Result struct {
	Text string
	Err  error
}

// Job is one in-flight generation request. Chunks delivers fragments in
// arrival order and is closed before the terminal result is published on
// Done. Done is buffered and carries exactly one value.
type Job struct {
	ID     string
	Chunks <-chan string
	Done   <-chan Result

	cancel context.CancelFunc
}

// Cancel abandons the job: the underlying connection is closed via context
// cancellation. Chunks already received stay valid.
func (j *Job) Cancel() { j.cancel() }

// Coordinator fans generation requests out to background goroutines. It is
// safe for concurrent use; independent jobs have no ordering relationship
// and a slow request never blocks a later one.
type Coordinator struct {
	gen    Generator
	logger zerolog.Logger
}

// Option tweaks Coordinator construction.
type Option func(*Coordinator)

// WithLogger installs a structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New constructs a Coordinator over the given generator.
func New(gen Generator, opts ...Option) *Coordinator {
	c := &Coordinator{gen: gen, logger: zerolog.Nop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit starts one generation request in the background and returns
// immediately. Chunks are forwarded as they arrive; consuming them promptly
// keeps the network read moving. Abandoning the job requires Cancel (or a
// canceled parent context) so the connection is released rather than left to
// time out.
func (c *Coordinator) Submit(ctx context.Context, req types.GenerationRequest) *Job {
	ctx, cancel := context.WithCancel(ctx)
	chunks := make(chan string)
	done := make(chan Result, 1)
	job := &Job{
		ID:     uuid.NewString(),
		Chunks: chunks,
		Done:   done,
		cancel: cancel,
	}

	go func() {
		defer cancel()
		var sb strings.Builder
		err := c.gen.GenerateStream(ctx, req.Prompt, req.MaxTokens, req.Temperature, func(tok string) error {
			sb.WriteString(tok)
			select {
			case chunks <- tok:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(chunks)
		if err != nil {
			c.logger.Debug().Str("job", job.ID).Err(err).Msg("generation failed")
			done <- Result{Text: sb.String(), Err: err}
			return
		}
		c.logger.Debug().Str("job", job.ID).Int("bytes", sb.Len()).Msg("generation complete")
		done <- Result{Text: sb.String()}
	}()

	return job
}
