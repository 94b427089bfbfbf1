package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"Confluence/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Logging     struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Feed struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		Timezone       string        `yaml:"timezone"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Pipeline struct {
		CycleInterval    time.Duration `yaml:"cycle_interval"`
		EvaluatorTimeout time.Duration `yaml:"evaluator_timeout"`
		BufferSize       int           `yaml:"buffer_size"`
		MaxCyclesPerSec  int           `yaml:"max_cycles_per_sec"`
	} `yaml:"pipeline"`
	Kelly struct {
		Dampening      float64            `yaml:"dampening"`
		DefaultPayoff  float64            `yaml:"default_payoff"`
		PhaseCaps      map[string]float64 `yaml:"phase_caps"`
		FallbackWinPct float64            `yaml:"fallback_win_pct"`
	} `yaml:"kelly"`
	Synthesis struct {
		Strictness      string             `yaml:"strictness"`
		SingleSourceCap float64            `yaml:"single_source_cap"`
		NeutralBand     float64            `yaml:"neutral_band"`
		MistakeDrag     float64            `yaml:"mistake_drag"`
		BaseWeights     map[string]float64 `yaml:"base_weights"`
	} `yaml:"synthesis"`
	Outcome struct {
		BenchmarkReturn   float64       `yaml:"benchmark_return"`
		DrawdownThreshold float64       `yaml:"drawdown_threshold"`
		ScoreDelay        time.Duration `yaml:"score_delay"`
	} `yaml:"outcome"`
	Knowledge struct {
		BaseDir          string        `yaml:"base_dir"`
		RecentSummaries  int           `yaml:"recent_summaries"`
		MaxSectionItems  int           `yaml:"max_section_items"`
		RetrievalBudget  int           `yaml:"retrieval_budget"`
		RetrievalTTL     time.Duration `yaml:"retrieval_ttl"`
		WriteLockTimeout time.Duration `yaml:"write_lock_timeout"`
	} `yaml:"knowledge"`
	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		DecisionsTopic string   `yaml:"decisions_topic"`
		OutcomesTopic  string   `yaml:"outcomes_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Queue struct {
		Workers       int           `yaml:"workers"`
		MaxRetries    int           `yaml:"max_retries"`
		RetryInterval time.Duration `yaml:"retry_interval"`
		VisibleWindow time.Duration `yaml:"visible_window"`
	} `yaml:"queue"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_DECISIONS_TOPIC"); v != "" {
		c.Kafka.DecisionsTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KNOWLEDGE_DIR"); v != "" {
		c.Knowledge.BaseDir = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols cannot be empty")
	}
	switch c.Synthesis.Strictness {
	case "", "lenient", "standard", "strict":
	default:
		return fmt.Errorf("synthesis.strictness must be lenient, standard or strict, got '%s'", c.Synthesis.Strictness)
	}
	if c.Kelly.Dampening < 0 || c.Kelly.Dampening > 1 {
		return fmt.Errorf("kelly.dampening must be in [0,1], got %v", c.Kelly.Dampening)
	}
	if c.Synthesis.MistakeDrag < 0 || c.Synthesis.MistakeDrag > 1 {
		return fmt.Errorf("synthesis.mistake_drag must be in [0,1], got %v", c.Synthesis.MistakeDrag)
	}
	for phase, limit := range c.Kelly.PhaseCaps {
		if limit < 0 || limit > 1 {
			return fmt.Errorf("kelly.phase_caps[%s] must be in [0,1], got %v", phase, limit)
		}
	}
	if len(c.Synthesis.BaseWeights) > 0 {
		var sum float64
		for _, w := range c.Synthesis.BaseWeights {
			if w < 0 {
				return fmt.Errorf("synthesis.base_weights entries must be non-negative")
			}
			sum += w
		}
		if math.Abs(sum-1.0) > 0.01 {
			return fmt.Errorf("synthesis.base_weights must sum to 1.0, got %v", sum)
		}
	}
	if c.Knowledge.BaseDir == "" {
		return fmt.Errorf("knowledge.base_dir is required")
	}
	return nil
}
