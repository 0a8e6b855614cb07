package types

import (
	"os"
	"strconv"
	"time"
)

// Config gathers the env-driven settings for the whole pipeline. Values are
// read once at startup; defaults mirror the documented behaviour.
type Config struct {
	ServerAddr string
	UploadDir  string

	PGHost   string
	PGPort   int
	PGUser   string
	PGPass   string
	PGDBName string

	Collection      string
	UpsertBatchSize int

	OllamaURL       string
	EmbeddingModel  string
	EmbedBatchSize  int
	EmbedTimeout    time.Duration

	CrossEncoderURL    string
	CrossEncoderModel  string
	CrossEncoderWeight float64

	RelevanceThreshold float64

	ChunkSize    int
	ChunkOverlap int

	// Header and footer margins, in points, cropped off PDF pages before
	// extraction. Zero disables cropping.
	PDFCropTop    float64
	PDFCropBottom float64

	LLMProvider string
	LLMURL      string
	LLMModel    string
	LLMAPIKey   string
}

func LoadConfig() Config {
	return Config{
		ServerAddr: envString("SERVER_ADDR", ":8080"),
		UploadDir:  envString("UPLOAD_DIR", "uploads"),

		PGHost:   envString("PG_HOST", "localhost"),
		PGPort:   envInt("PG_PORT", 5432),
		PGUser:   envString("PG_USER", "postgres"),
		PGPass:   envString("PG_PASS", "postgres"),
		PGDBName: envString("PG_DB_NAME", "ragify"),

		Collection:      envString("VECTOR_COLLECTION", "ragify_library_documents"),
		UpsertBatchSize: envInt("VECTOR_UPSERT_BATCH", 32),

		OllamaURL:      envString("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel: envString("EMBEDDING_MODEL", "bge-m3"),
		EmbedBatchSize: envInt("EMBEDDING_BATCH", 12),
		EmbedTimeout:   envDuration("EMBEDDING_TIMEOUT", 60*time.Second),

		CrossEncoderURL:    envString("CROSS_ENCODER_URL", "http://localhost:8501"),
		CrossEncoderModel:  envString("CROSS_ENCODER_MODEL", "cross-encoder/ms-marco-MiniLM-L-6-v2"),
		CrossEncoderWeight: clampWeight(envFloat("CROSS_ENCODER_WEIGHT", 0.7)),

		RelevanceThreshold: envFloat("MIN_CROSS_SCORE", 0.35),

		ChunkSize:    envInt("CHUNK_SIZE", 800),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),

		PDFCropTop:    envFloat("PDF_CROP_TOP", 0),
		PDFCropBottom: envFloat("PDF_CROP_BOTTOM", 0),

		LLMProvider: envString("LLM_PROVIDER", "ollama"),
		LLMURL:      envString("LLM_URL", "http://localhost:11434"),
		LLMModel:    envString("LLM_MODEL", "llama3"),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
