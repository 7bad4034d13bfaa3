package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prav10140/Shiksha-Sarthi/internal/ai"
	"github.com/prav10140/Shiksha-Sarthi/internal/config"
	"github.com/prav10140/Shiksha-Sarthi/internal/httpserver"
	"github.com/prav10140/Shiksha-Sarthi/internal/materials"
	"github.com/prav10140/Shiksha-Sarthi/internal/speech"
	"github.com/prav10140/Shiksha-Sarthi/internal/store"
	"github.com/prav10140/Shiksha-Sarthi/internal/tts"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewFirestoreStore(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	groq := ai.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModelID)
	orch := ai.NewOrchestrator(groq, st)
	dist := materials.NewDistributor(st)
	synth := tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)

	e := httpserver.New(ctx, httpserver.Deps{
		Store:         st,
		Orchestrator:  orch,
		Distributor:   dist,
		SpeechFactory: speech.StreamFactory(cfg.SpeechAPIKey),
		Synth:         synth,
		SettleDelay:   cfg.SettleDelay,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
