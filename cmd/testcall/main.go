package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Hamon-Elyot/testcall/internal/id"
	"github.com/Hamon-Elyot/testcall/pkg/call"
	"github.com/Hamon-Elyot/testcall/pkg/config"
	"github.com/Hamon-Elyot/testcall/pkg/llm"
	"github.com/Hamon-Elyot/testcall/pkg/speech"
	"github.com/Hamon-Elyot/testcall/pkg/store"
	"github.com/Hamon-Elyot/testcall/pkg/telephony"
)

func newSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (call.Sink, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, appointments and summaries will not be persisted")
		return call.NoopSink{}, func() {}, nil
	}
	pg, err := store.NewPostgres(ctx, store.Config{DSN: cfg.DatabaseURL}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return pg, pg.Close, nil
}

func newSessionFactory(cfg config.Config, generator call.Generator, sink call.Sink, logger *slog.Logger) telephony.SessionFactory {
	return func(streamSID, callSID string, transport call.Transport) (*call.Session, error) {
		transcriber, err := speech.DialDeepgram(context.Background(), speech.DeepgramConfig{
			APIKey:   cfg.DeepgramAPIKey,
			Model:    cfg.DeepgramModel,
			Language: cfg.Language,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("dial transcription: %w", err)
		}

		synth := speech.NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID)
		if cfg.ElevenLabsModel != "" {
			synth = synth.WithModel(cfg.ElevenLabsModel)
		}

		return call.NewSession(id.New(), callSID, call.Config{
			SystemPrompt:      cfg.SystemPrompt,
			Greeting:          cfg.Greeting,
			MemoryLimit:       cfg.MemoryLimit,
			BargeInMinRunes:   cfg.BargeInMinRunes,
			SummaryAfterTurns: cfg.SummaryAfterTurns,
		}, call.Deps{
			Transport:   transport,
			Transcriber: transcriber,
			Synthesizer: synth,
			Generator:   generator,
			Sink:        sink,
			Logger:      logger,
			NewLabel:    id.New,
		})
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := id.Init(cfg.NodeID); err != nil {
		return fmt.Errorf("init id node: %w", err)
	}

	generator, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
	})
	if err != nil {
		return fmt.Errorf("build generator: %w", err)
	}

	sink, closeSink, err := newSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	mux := telephony.NewMux(
		telephony.IncomingHandler{
			PublicHost: cfg.PublicHost,
			Logger:     logger,
		},
		telephony.ConnectionHandler{
			Stream: telephony.StreamConfig{
				PingInterval: cfg.WSPingInterval,
				WriteTimeout: cfg.WSWriteTimeout,
			},
			NewSession: newSessionFactory(cfg, generator, sink, logger),
			Logger:     logger,
		},
	)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	logger.Info("starting voice assistant", "addr", cfg.Addr, "public_host", cfg.PublicHost, "llm_provider", cfg.LLMProvider)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("voice assistant stopped")
	return nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "testcall: %v\n", err)
		os.Exit(1)
	}
}
