package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/parakeet-ml/parakeet/internal/config"
	"github.com/parakeet-ml/parakeet/internal/engine"
	"github.com/parakeet-ml/parakeet/internal/logger"
	"github.com/parakeet-ml/parakeet/internal/model/flight"
	"github.com/parakeet-ml/parakeet/internal/model/toy"
	"github.com/parakeet-ml/parakeet/internal/monitoring"
	"github.com/parakeet-ml/parakeet/internal/tokenizer"
)

var (
	modelAddr   = flag.String("model", "toy", "Model backend: 'toy' or a Flight endpoint host:port")
	prompt      = flag.String("prompt", "Hello, my name is", "Prompt to generate from")
	maxNew      = flag.Int("n", 50, "Number of new tokens to generate")
	temperature = flag.Float64("temperature", 0.8, "Sampling temperature (must be > 0)")
	topK        = flag.Int("top-k", 20, "Top-k mask, 0 disables")
	numSamples  = flag.Int("samples", 1, "Number of independent samples")
	seed        = flag.Int64("seed", 1234, "Random seed, 0 for time-based")
	eosID       = flag.Int("eos", -1, "End-of-sequence token id, negative disables")
	blockSize   = flag.Int("block-size", 2048, "Model's maximum context length")
	vocabSize   = flag.Int("vocab", 1000, "Vocabulary size for the toy backend")
	encoding    = flag.String("encoding", "cl100k_base", "Tiktoken encoding name")
	healthAddr  = flag.String("health", ":9090", "Address to serve health and Prometheus metrics")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat   = flag.String("log-format", "console", "Log format: console or json")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, *logFormat)

	cfg := config.Config{
		MaxNewTokens: *maxNew,
		Temperature:  *temperature,
		TopK:         *topK,
		NumSamples:   *numSamples,
		Seed:         *seed,
		EOSID:        *eosID,
		BlockSize:    *blockSize,
	}
	if err := cfg.Validate(); err != nil {
		logger.Log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Health + metrics endpoints
	monitor := monitoring.NewHealthMonitor()
	go func() {
		if err := monitor.Start(*healthAddr); err != nil {
			logger.Log.Warn("health monitor stopped", "error", err)
		}
	}()

	tok, err := tokenizer.NewTikToken(*encoding)
	if err != nil {
		logger.Log.Error("failed to initialize tokenizer", "error", err)
		os.Exit(1)
	}

	encoded, err := tok.Encode(*prompt)
	if err != nil {
		logger.Log.Error("failed to encode prompt", "error", err)
		os.Exit(1)
	}
	logger.Log.Debug("encoded prompt", "tokens", encoded, "length", len(encoded))

	if err := cfg.CheckPrompt(len(encoded)); err != nil {
		logger.Log.Error("prompt does not fit model context", "error", err)
		os.Exit(1)
	}

	model, closeModel, err := buildModel(ctx)
	if err != nil {
		logger.Log.Error("failed to initialize model", "error", err)
		os.Exit(1)
	}
	defer closeModel()

	eng, err := engine.New(model, &engine.Runtime{Device: "cpu"}, engine.SamplerConfig{
		Temperature: cfg.Temperature,
		TopK:        cfg.TopK,
		Seed:        cfg.Seed,
	})
	if err != nil {
		logger.Log.Error("failed to initialize engine", "error", err)
		os.Exit(1)
	}

	maxReturned := cfg.MaxReturnedTokens(len(encoded))
	stream, err := eng.Stream(encoded, maxReturned, maxReturned, cfg.EOSID, cfg.NumSamples)
	if err != nil {
		logger.Log.Error("failed to start generation", "error", err)
		os.Exit(1)
	}

	sample := 0
	for stream.More() {
		sample++
		res, err := stream.Next(ctx)
		if err != nil {
			logger.Log.Error("generation failed", "sample", sample, "error", err)
			os.Exit(1)
		}

		text, err := tok.Decode(res.Tokens)
		if err != nil {
			logger.Log.Error("failed to decode result", "sample", sample, "error", err)
			os.Exit(1)
		}

		logger.Log.Info("inference complete",
			"sample", sample,
			"tokens", res.Generated,
			"duration", res.Elapsed,
			"tok_per_sec", fmt.Sprintf("%.2f", res.TokensPerSecond()),
			"eos", res.HitEOS,
		)
		monitor.RecordGeneration(res.Generated, res.Elapsed)
		fmt.Println(text)
	}
}

// buildModel selects the backend: the in-process toy model or a remote
// Flight endpoint.
func buildModel(ctx context.Context) (engine.Model, func(), error) {
	if *modelAddr == "toy" {
		m, err := toy.New(*vocabSize)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}

	host, port := *modelAddr, 0
	if i := strings.LastIndex(*modelAddr, ":"); i >= 0 {
		host = (*modelAddr)[:i]
		if _, err := fmt.Sscanf((*modelAddr)[i+1:], "%d", &port); err != nil {
			return nil, nil, fmt.Errorf("invalid flight endpoint %q: %w", *modelAddr, err)
		}
	}

	client, err := flight.NewClient(host, port)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}
	logger.Log.Info("connected to flight model", "addr", *modelAddr)

	return client, func() {
		if err := client.Close(); err != nil {
			logger.Log.Warn("failed to close flight client", "error", err)
		}
	}, nil
}
