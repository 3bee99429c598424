package config

import "time"

// DefaultConfig returns Ethos's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Service:       DefaultServiceConfig(),
		Store:         DefaultStoreConfig(),
		Graph:         DefaultGraphConfig(),
		Embedding:     DefaultEmbeddingConfig(),
		Retrieval:     DefaultRetrievalConfig(),
		Consolidation: DefaultConsolidationConfig(),
		Decay:         DefaultDecayConfig(),
		Conflict:      DefaultConflictConfig(),
		Log:           DefaultLogConfig(),
		Telemetry:     DefaultTelemetryConfig(),
	}
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		SocketAddr:      "/var/run/ethos.sock",
		HTTPAddr:        ":8780",
		MetricsAddr:     ":8781",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "ethos",
		Password:        "",
		Name:            "ethos",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		URI:      "neo4j://localhost:7687",
		User:     "neo4j",
		Password: "",
	}
}

func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Mode:           "primary_with_fallback",
		Dimensions:     384,
		PrimaryModel:   "default",
		RequestTimeout: 10 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: 1 * time.Second,
		RetryMaxDelay:  60 * time.Second,
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		AnchorTopK:          10,
		SpreadingEnabled:    true,
		SpreadingIterations: 3,
		SpreadingDecay:      0.85,
		MaxEdgesPerNode:     50,
		MaxCandidateEdges:   500,
		FinalTopK:           5,
		CosineWeight:        0.5,
		ActivationWeight:    0.3,
		StructuralWeight:    0.2,
	}
}

func DefaultConsolidationConfig() ConsolidationConfig {
	return ConsolidationConfig{
		Interval:           15 * time.Minute,
		IdleQuietPeriod:    60 * time.Second,
		IdleMaxCPUPercent:  80,
		BatchSize:          100,
		ReviewInboxPath:    "review_inbox.md",
	}
}

func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		BaseTau:            7 * 24 * time.Hour,
		FrequencyAlpha:     0.3,
		ImportanceBeta:     0.2,
		SweepBatchSize:     500,
		LTPBoost:           1.5, // ltp_multiplier in the decay formula
		LTPMaxConcurrency:  32,
		TombstoneThreshold: 0.05,
	}
}

func DefaultConflictConfig() ConflictConfig {
	return ConflictConfig{
		SupersessionSimilarity:     0.85,
		AutoSupersessionConfidence: 0.15, // confidence delta, not absolute
		AmbiguityBand:              0.1,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "ethos",
		SampleRate:   0.1,
	}
}
