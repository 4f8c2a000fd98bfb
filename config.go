package mailvault

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the mailvault engine.
// Every field has an environment-variable source read by FromEnv.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// FromEnv reads DATABASE_URL and strips an optional "sqlite://" scheme.
	DBPath string `json:"db_path"`

	// LLM endpoints. Embedding and Chat may point at different providers.
	Chat      LLMConfig `json:"chat"`
	Embedding LLMConfig `json:"embedding"`

	// EmbeddingDim is the vector dimension the store is created with.
	// Forced to 3072 when the embedding model is text-embedding-3-large.
	EmbeddingDim int `json:"embedding_dim"`

	// LocalEmbed swaps in the deterministic offline embedding provider.
	LocalEmbed bool `json:"local_embed"`

	// Tagging
	EnableTags    bool   `json:"enable_tags"`
	TagModel      string `json:"tag_model"`
	TagTextBudget int    `json:"tag_text_budget"`

	// Chunking (characters)
	ChunkTarget  int `json:"chunk_target"`
	ChunkOverlap int `json:"chunk_overlap"`
	ChunkMinJoin int `json:"chunk_min_join"`
	ChunkMinKeep int `json:"chunk_min_keep"`

	// Embedding batching and retry
	EmbedBatch     int           `json:"embed_batch"`
	RetryMax       int           `json:"retry_max"`
	RetryBaseSleep time.Duration `json:"retry_base_sleep"`

	// Model overrides for the chat-backed features.
	IntentModel  string `json:"intent_model"`
	AskChatModel string `json:"ask_chat_model"`
	SummaryModel string `json:"summary_model"`

	// AuthToken, when non-empty, is required as a bearer token by the
	// HTTP server. Verification of externally issued tokens is out of
	// scope here.
	AuthToken string `json:"-"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider"` // openai, ollama, custom, local
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
}

// DefaultConfig returns a Config with the production defaults.
func DefaultConfig() Config {
	return Config{
		DBPath: "mailvault.db",
		Chat: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedding: LLMConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		EmbeddingDim:   1536,
		EnableTags:     true,
		TagModel:       "gpt-4o-mini",
		TagTextBudget:  4000,
		ChunkTarget:    1200,
		ChunkOverlap:   150,
		ChunkMinJoin:   120,
		ChunkMinKeep:   20,
		EmbedBatch:     64,
		RetryMax:       4,
		RetryBaseSleep: time.Second,
		IntentModel:    "gpt-4o-mini",
		AskChatModel:   "gpt-4o-mini",
		SummaryModel:   "gpt-4o-mini",
	}
}

// FromEnv builds a Config from the process environment, falling back to
// DefaultConfig for anything unset.
func FromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBPath = strings.TrimPrefix(v, "sqlite://")
	}

	key := os.Getenv("OPENAI_API_KEY")
	cfg.Chat.APIKey = key
	cfg.Embedding.APIKey = key

	if v := os.Getenv("EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	cfg.EmbeddingDim = envInt("EMBED_DIM", cfg.EmbeddingDim)
	// 3-large only ships 3072-dim vectors; the env override cannot shrink it.
	if cfg.Embedding.Model == "text-embedding-3-large" {
		cfg.EmbeddingDim = 3072
	}

	if v := os.Getenv("EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}

	if envBool("LOCAL_EMBED", false) {
		cfg.LocalEmbed = true
		cfg.Embedding.Provider = "local"
	}

	cfg.EnableTags = envBool("ENABLE_OAI_TAGS", cfg.EnableTags)
	if v := os.Getenv("TAG_MODEL"); v != "" {
		cfg.TagModel = v
	}
	cfg.TagTextBudget = envInt("TAG_TEXT_BUDGET", cfg.TagTextBudget)

	cfg.ChunkTarget = envInt("CHUNK_TARGET_CHARS", cfg.ChunkTarget)
	cfg.ChunkOverlap = envInt("CHUNK_OVERLAP_CHARS", cfg.ChunkOverlap)
	cfg.ChunkMinJoin = envInt("CHUNK_MIN_JOIN_CHARS", cfg.ChunkMinJoin)
	cfg.ChunkMinKeep = envInt("CHUNK_MIN_KEEP_CHARS", cfg.ChunkMinKeep)

	cfg.EmbedBatch = envInt("EMBED_BATCH", cfg.EmbedBatch)
	cfg.RetryMax = envInt("RETRY_MAX", cfg.RetryMax)
	if v := os.Getenv("RETRY_BASE_SLEEP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RetryBaseSleep = time.Duration(f * float64(time.Second))
		}
	}

	if v := os.Getenv("INTENT_MODEL"); v != "" {
		cfg.IntentModel = v
	}
	if v := os.Getenv("ASK_CHAT_MODEL"); v != "" {
		cfg.AskChatModel = v
	}
	if v := os.Getenv("SUMMARY_MODEL"); v != "" {
		cfg.SummaryModel = v
	}

	cfg.AuthToken = os.Getenv("API_AUTH_TOKEN")

	return cfg
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
