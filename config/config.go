// Package config loads Ethos's configuration from defaults, an optional
// YAML file, and environment variable overrides, in that priority order.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("ethos.yaml").
//	    WithEnvPrefix("ETHOS").
//	    Load()
package config

import (
	"strconv"
	"time"
)

// Config is Ethos's complete configuration tree.
type Config struct {
	Service       ServiceConfig       `yaml:"service" env:"SERVICE"`
	Store         StoreConfig         `yaml:"store" env:"STORE"`
	Graph         GraphConfig         `yaml:"graph" env:"GRAPH"`
	Embedding     EmbeddingConfig     `yaml:"embedding" env:"EMBEDDING"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" env:"RETRIEVAL"`
	Consolidation ConsolidationConfig `yaml:"consolidation" env:"CONSOLIDATION"`
	Decay         DecayConfig         `yaml:"decay" env:"DECAY"`
	Conflict      ConflictConfig      `yaml:"conflict" env:"CONFLICT"`
	Log           LogConfig           `yaml:"log" env:"LOG"`
	Telemetry     TelemetryConfig     `yaml:"telemetry" env:"TELEMETRY"`
}

// ServiceConfig configures the transport surfaces (socket + HTTP).
type ServiceConfig struct {
	SocketAddr      string        `yaml:"socket_addr" env:"SOCKET_ADDR"`
	HTTPAddr        string        `yaml:"http_addr" env:"HTTP_ADDR"`
	MetricsAddr     string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// StoreConfig configures the relational store (Session, SessionEvent,
// EpisodicTrace, SemanticFact, MemoryVector, WorkflowMemory).
type StoreConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"` // postgres | sqlite
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN returns a connection string suitable for gorm's driver constructors.
func (d StoreConfig) DSN() string {
	switch d.Driver {
	case "sqlite":
		return d.Name
	default: // postgres
		return "host=" + d.Host +
			" port=" + strconv.Itoa(d.Port) +
			" user=" + d.User +
			" password=" + d.Password +
			" dbname=" + d.Name +
			" sslmode=" + d.SSLMode
	}
}

// GraphConfig configures the associative-link graph store.
type GraphConfig struct {
	URI      string `yaml:"uri" env:"URI"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// EmbeddingConfig configures the embedding gateway and its providers.
type EmbeddingConfig struct {
	Mode             string        `yaml:"mode" env:"MODE"` // primary | local | primary_with_fallback
	Dimensions       int           `yaml:"dimensions" env:"DIMENSIONS"`
	PrimaryBaseURL   string        `yaml:"primary_base_url" env:"PRIMARY_BASE_URL"`
	PrimaryAPIKey    string        `yaml:"primary_api_key" env:"PRIMARY_API_KEY"`
	PrimaryModel     string        `yaml:"primary_model" env:"PRIMARY_MODEL"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	MaxRetries       int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" env:"RETRY_BASE_DELAY"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay" env:"RETRY_MAX_DELAY"`
	RateLimitRPS     float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// RetrievalConfig configures the anchor search + spreading activation pipeline.
type RetrievalConfig struct {
	AnchorTopK         int     `yaml:"anchor_top_k" env:"ANCHOR_TOP_K"`
	SpreadingEnabled   bool    `yaml:"spreading_enabled" env:"SPREADING_ENABLED"`
	SpreadingIterations int    `yaml:"spreading_iterations" env:"SPREADING_ITERATIONS"`
	SpreadingDecay     float64 `yaml:"spreading_decay" env:"SPREADING_DECAY"`
	MaxEdgesPerNode    int     `yaml:"max_edges_per_node" env:"MAX_EDGES_PER_NODE"`
	MaxCandidateEdges  int     `yaml:"max_candidate_edges" env:"MAX_CANDIDATE_EDGES"`
	FinalTopK          int     `yaml:"final_top_k" env:"FINAL_TOP_K"`
	CosineWeight       float64 `yaml:"cosine_weight" env:"COSINE_WEIGHT"`
	ActivationWeight   float64 `yaml:"activation_weight" env:"ACTIVATION_WEIGHT"`
	StructuralWeight   float64 `yaml:"structural_weight" env:"STRUCTURAL_WEIGHT"`
}

// ConsolidationConfig configures the background consolidation loop.
type ConsolidationConfig struct {
	Interval           time.Duration `yaml:"interval" env:"INTERVAL"`
	IdleQuietPeriod    time.Duration `yaml:"idle_quiet_period" env:"IDLE_QUIET_PERIOD"`
	IdleMaxCPUPercent  float64       `yaml:"idle_max_cpu_percent" env:"IDLE_MAX_CPU_PERCENT"`
	BatchSize          int           `yaml:"batch_size" env:"BATCH_SIZE"`
	ReviewInboxPath    string        `yaml:"review_inbox_path" env:"REVIEW_INBOX_PATH"`
}

// DecayConfig configures the salience/decay formula and sweep batching.
type DecayConfig struct {
	BaseTau         time.Duration `yaml:"base_tau" env:"BASE_TAU"`
	FrequencyAlpha  float64       `yaml:"frequency_alpha" env:"FREQUENCY_ALPHA"`
	ImportanceBeta  float64       `yaml:"importance_beta" env:"IMPORTANCE_BETA"`
	SweepBatchSize  int           `yaml:"sweep_batch_size" env:"SWEEP_BATCH_SIZE"`
	LTPBoost        float64       `yaml:"ltp_boost" env:"LTP_BOOST"`
	LTPMaxConcurrency int         `yaml:"ltp_max_concurrency" env:"LTP_MAX_CONCURRENCY"`
	TombstoneThreshold float64    `yaml:"tombstone_threshold" env:"TOMBSTONE_THRESHOLD"`
}

// ConflictConfig configures the fact conflict-resolution state machine.
type ConflictConfig struct {
	SupersessionSimilarity      float64 `yaml:"supersession_similarity" env:"SUPERSESSION_SIMILARITY"`
	AutoSupersessionConfidence  float64 `yaml:"auto_supersession_confidence" env:"AUTO_SUPERSESSION_CONFIDENCE"`
	AmbiguityBand               float64 `yaml:"ambiguity_band" env:"AMBIGUITY_BAND"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OTel SDK.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}
