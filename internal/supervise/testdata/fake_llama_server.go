package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var model string
	var port int
	var ctxSize int
	var gpuLayers int
	var startDelay time.Duration
	// Accept the flags the supervisor passes to a real llama-server.
	flag.StringVar(&model, "model", "", "model path")
	flag.IntVar(&port, "port", 0, "port")
	flag.IntVar(&ctxSize, "ctx-size", 0, "context size")
	flag.IntVar(&gpuLayers, "n-gpu-layers", 0, "gpu layers")
	flag.DurationVar(&startDelay, "start-delay", 0, "delay before listening")
	flag.Parse()

	if startDelay > 0 {
		time.Sleep(startDelay)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			fl := w.(http.Flusher)
			for _, tok := range []string{"echo:", req.Prompt} {
				b, _ := json.Marshal(map[string]string{"content": tok})
				fmt.Fprintf(w, "data: %s\n", b)
				fl.Flush()
			}
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "echo:" + req.Prompt})
	})

	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
