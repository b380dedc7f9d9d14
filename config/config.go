package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir     string `json:"project_dir"`
	ResultsDir     string `json:"results_dir"`
	DataDir        string `json:"data_dir"`
	EvalResultsDir string `json:"eval_results_dir"`

	LLMProvider          string `json:"llm_provider"`
	DeepThinkLLM         string `json:"deep_think_llm"`
	QuickThinkLLM        string `json:"quick_think_llm"`
	BackendURL           string `json:"backend_url"`
	LLMAPIKey            string `json:"llm_api_key"`
	MaxTokens            int    `json:"max_tokens"`
	MaxDebateRounds      int    `json:"max_debate_rounds"`
	MaxRiskDiscussRounds int    `json:"max_risk_rounds"`
	MaxRecurLimit        int    `json:"max_recursion_limit"`
	ToolLoopCeiling      int    `json:"tool_loop_ceiling"`
	Debug                bool   `json:"debug"`
	RedditUserAgent      string `json:"reddit_user_agent"`

	// Per-call timeout and retry policy applied to every completion, embedding and tool call
	CallTimeout       time.Duration `json:"call_timeout"`
	RetryMaxAttempts  int           `json:"retry_max_attempts"`
	RetryInitialDelay time.Duration `json:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `json:"retry_max_delay"`

	// Memory store
	EmbeddingURL    string `json:"embedding_url"`
	EmbeddingModel  string `json:"embedding_model"`
	EmbeddingAPIKey string `json:"embedding_api_key"`
	MemoryDBPath    string `json:"memory_db_path"`
	MemoryMatches   int    `json:"memory_matches"`

	// Reflection engine
	ProcessedFillsLog string `json:"processed_fills_log"`
	MatchWindowDays   int    `json:"match_window_days"`
	FillsLimit        int    `json:"fills_limit"`
	FillsDays         int    `json:"fills_days"`

	BatchConcurrency int `json:"batch_concurrency"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// Paradex portfolio collaborator
	ParadexBaseURL string `json:"paradex_base_url"`
	ParadexJWT     string `json:"paradex_jwt"`

	// AI Model API Keys
	DeepSeekAPIKey string `json:"deepseek_api_key"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns defaults with every directory placed under root.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:     root,
		ResultsDir:     filepath.Join(root, "results"),
		DataDir:        filepath.Join(root, "data"),
		EvalResultsDir: filepath.Join(root, "eval_results"),

		LLMProvider:   "openai",
		DeepThinkLLM:  "deepseek/deepseek-chat",
		QuickThinkLLM: "deepseek/deepseek-chat",
		BackendURL:    "https://openrouter.ai/api/v1",
		MaxTokens:     4096,

		MaxDebateRounds:      1,
		MaxRiskDiscussRounds: 1,
		MaxRecurLimit:        100,
		ToolLoopCeiling:      6,
		Debug:                false,
		RedditUserAgent:      "TradeCortex/1.0",

		CallTimeout:       120 * time.Second,
		RetryMaxAttempts:  3,
		RetryInitialDelay: time.Second,
		RetryMaxDelay:     30 * time.Second,

		EmbeddingURL:   "https://api.siliconflow.cn/v1",
		EmbeddingModel: "BAAI/bge-m3",
		MemoryDBPath:   filepath.Join(root, "data", "memory", "memory.db"),
		MemoryMatches:  2,

		ProcessedFillsLog: filepath.Join(root, "eval_results", "processed_fills.log"),
		MatchWindowDays:   2,
		FillsLimit:        100,
		FillsDays:         30,

		BatchConcurrency: 2,

		// Eino Debug defaults
		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		ParadexBaseURL: "https://api.prod.paradex.trade/v1",
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("EVAL_RESULTS_DIR"); val != "" {
		c.EvalResultsDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("DEEP_THINK_LLM"); val != "" {
		c.DeepThinkLLM = val
	}
	if val := os.Getenv("QUICK_THINK_LLM"); val != "" {
		c.QuickThinkLLM = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("OPENROUTER_API_KEY"); val != "" {
		c.LLMAPIKey = val
	}
	if val := os.Getenv("LLM_API_KEY"); val != "" {
		c.LLMAPIKey = val
	}

	setInt(&c.MaxDebateRounds, "MAX_DEBATE_ROUNDS")
	setInt(&c.MaxRiskDiscussRounds, "MAX_RISK_ROUNDS")
	setInt(&c.MaxRecurLimit, "MAX_RECURSION_LIMIT")
	setInt(&c.ToolLoopCeiling, "TOOL_LOOP_CEILING")
	setInt(&c.MaxTokens, "MAX_TOKENS")
	setInt(&c.RetryMaxAttempts, "RETRY_MAX_ATTEMPTS")
	setInt(&c.MemoryMatches, "MEMORY_MATCHES")
	setInt(&c.MatchWindowDays, "MATCH_WINDOW_DAYS")
	setInt(&c.FillsLimit, "FILLS_LIMIT")
	setInt(&c.FillsDays, "FILLS_DAYS")
	setInt(&c.BatchConcurrency, "BATCH_CONCURRENCY")

	setDuration(&c.CallTimeout, "CALL_TIMEOUT")
	setDuration(&c.RetryInitialDelay, "RETRY_INITIAL_DELAY")
	setDuration(&c.RetryMaxDelay, "RETRY_MAX_DELAY")

	if val := os.Getenv("EMBEDDING_URL"); val != "" {
		c.EmbeddingURL = val
	}
	if val := os.Getenv("EMBEDDING_MODEL"); val != "" {
		c.EmbeddingModel = val
	}
	if val := os.Getenv("SILICONFLOW_API_KEY"); val != "" {
		c.EmbeddingAPIKey = val
	}
	if val := os.Getenv("EMBEDDING_API_KEY"); val != "" {
		c.EmbeddingAPIKey = val
	}
	if val := os.Getenv("MEMORY_DB_PATH"); val != "" {
		c.MemoryDBPath = val
	}
	if val := os.Getenv("PROCESSED_FILLS_LOG"); val != "" {
		c.ProcessedFillsLog = val
	}

	if val := os.Getenv("TRADECORTEX_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	setInt(&c.EinoDebugPort, "EINO_DEBUG_PORT")

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("PARADEX_BASE_URL"); val != "" {
		c.ParadexBaseURL = val
	}
	if val := os.Getenv("PARADEX_JWT"); val != "" {
		c.ParadexJWT = val
	}

	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("REDDIT_USER_AGENT"); val != "" {
		c.RedditUserAgent = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			*dst = v
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if v, err := time.ParseDuration(val); err == nil {
			*dst = v
		}
	}
}

// Validate rejects configurations the deliberation pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxDebateRounds < 1 {
		errs = append(errs, fmt.Errorf("max_debate_rounds must be >= 1, got %d", c.MaxDebateRounds))
	}
	if c.MaxRiskDiscussRounds < 1 {
		errs = append(errs, fmt.Errorf("max_risk_rounds must be >= 1, got %d", c.MaxRiskDiscussRounds))
	}
	if c.ToolLoopCeiling < 1 {
		errs = append(errs, fmt.Errorf("tool_loop_ceiling must be >= 1, got %d", c.ToolLoopCeiling))
	}
	if c.MatchWindowDays < 1 {
		errs = append(errs, fmt.Errorf("match_window_days must be >= 1, got %d", c.MatchWindowDays))
	}
	if c.MemoryMatches < 1 {
		errs = append(errs, fmt.Errorf("memory_matches must be >= 1, got %d", c.MemoryMatches))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry_max_attempts must be >= 1, got %d", c.RetryMaxAttempts))
	}
	if c.CallTimeout < 0 {
		errs = append(errs, errors.New("call_timeout must not be negative"))
	}
	if c.BatchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("batch_concurrency must be >= 1, got %d", c.BatchConcurrency))
	}
	return errors.Join(errs...)
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.EvalResultsDir}
	if c.MemoryDBPath != "" {
		dirs = append(dirs, filepath.Dir(c.MemoryDBPath))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
