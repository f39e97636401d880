package config

import (
	"os"
	"strconv"
)

const (
	// ProviderOllama selects the local Ollama backend.
	ProviderOllama = "ollama"
	// ProviderOpenAI selects the OpenAI API backend.
	ProviderOpenAI = "openai"
)

const (
	// IndexChromem selects the embedded per-document vector index.
	IndexChromem = "chromem"
	// IndexPgvector selects the Postgres/pgvector index backend.
	IndexPgvector = "pgvector"
)

type LLMConfig struct {
	Provider string
	Model    string
}

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type StorageConfig struct {
	Dir           string
	MaxFileSizeMB int
	ChunkSize     int
	ChunkOverlap  int
}

type IndexConfig struct {
	Provider    string
	PostgresDSN string
}

type WorkflowConfig struct {
	RelevanceThreshold float64
	MaxRewrites        int
}

type GitHubConfig struct {
	Token string
	Repo  string // owner/name used for repo-scoped queries
}

type GoogleConfig struct {
	AccessToken string
}

type Config struct {
	LLM        LLMConfig
	Embeddings EmbeddingsConfig
	Storage    StorageConfig
	Index      IndexConfig
	Workflow   WorkflowConfig
	GitHub     GitHubConfig
	Google     GoogleConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	RequestTimeoutSeconds int
}

func Load() Config {
	return Config{
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOllama),
			Model:    getEnv("LLM_MODEL", "llama3.1"),
		},
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOllama),
			Model:     getEnv("EMBEDDINGS_MODEL", "nomic-embed-text"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 768),
		},
		Storage: StorageConfig{
			Dir:           getEnv("DOCUMENTS_DIR", "documents"),
			MaxFileSizeMB: getEnvInt("MAX_FILE_SIZE_MB", 50),
			ChunkSize:     getEnvInt("CHUNK_SIZE", 1000),
			ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 200),
		},
		Index: IndexConfig{
			Provider:    getEnv("INDEX_PROVIDER", IndexChromem),
			PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/aide?sslmode=disable"),
		},
		Workflow: WorkflowConfig{
			RelevanceThreshold: getEnvFloat("RELEVANCE_THRESHOLD", 0.8),
			MaxRewrites:        getEnvInt("MAX_QUERY_REWRITES", 2),
		},
		GitHub: GitHubConfig{
			Token: getEnv("GITHUB_TOKEN", ""),
			Repo:  getEnv("GITHUB_REPO", ""),
		},
		Google: GoogleConfig{
			AccessToken: getEnv("GOOGLE_ACCESS_TOKEN", ""),
		},
		OllamaHost:            getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		RequestTimeoutSeconds: getEnvInt("REQUEST_TIMEOUT_SECONDS", 30),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
