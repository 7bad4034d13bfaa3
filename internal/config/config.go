package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	GroqAPIKey  string
	GroqModelID string

	SpeechAPIKey string

	ElevenLabsKey     string
	ElevenLabsVoiceID string

	FirebaseProjectID   string
	FirebaseCredentials string

	// SettleDelay is the pause between stopping a capture tool and dispatching
	// the buffered transcript to generation, so a trailing recognition
	// callback can still flush.
	SettleDelay time.Duration
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	groqKey := os.Getenv("GROQ_API_KEY")
	if groqKey == "" {
		log.Println("Warning: GROQ_API_KEY not set - AI generation will not work")
	}
	groqModel := os.Getenv("GROQ_MODEL_ID")
	if groqModel == "" {
		groqModel = "llama-3.3-70b-versatile"
	}

	speechKey := os.Getenv("SPEECH_API_KEY")
	if speechKey == "" {
		log.Println("Warning: SPEECH_API_KEY not set - server-side transcription will not work")
	}

	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	if elevenKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - tutor speech synthesis will not work")
	}
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")

	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	if projectID == "" {
		log.Println("Warning: FIREBASE_PROJECT_ID not set - persistence will not work")
	}
	creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")

	settle := time.Second
	if v := os.Getenv("SETTLE_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			settle = time.Duration(ms) * time.Millisecond
		}
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:         addr,
		GroqAPIKey:          groqKey,
		GroqModelID:         groqModel,
		SpeechAPIKey:        speechKey,
		ElevenLabsKey:       elevenKey,
		ElevenLabsVoiceID:   voiceID,
		FirebaseProjectID:   projectID,
		FirebaseCredentials: creds,
		SettleDelay:         settle,
	}
}
