// =============================================================================
// 📦 novelmemory 默认配置
// =============================================================================
// 各作用域的容量与阈值取自写作场景的经验值：
// 全局层条目少而持久，段落层条目多而短命。
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Memory:    DefaultMemoryConfig(),
		Engine:    DefaultEngineConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultMemoryConfig 返回默认分层记忆配置
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Global:    ScopeConfig{Capacity: 2000, CompressionThreshold: 8, HighImportanceThreshold: 9},
		Volume:    ScopeConfig{Capacity: 1500, CompressionThreshold: 6, HighImportanceThreshold: 7},
		Chapter:   ScopeConfig{Capacity: 800, CompressionThreshold: 5, HighImportanceThreshold: 6},
		Paragraph: ScopeConfig{Capacity: 200, CompressionThreshold: 4, HighImportanceThreshold: 5},

		SimilarityThreshold:  0.8,
		AllowOverflow:        false,
		TemporaryStateMaxAge: 15 * time.Minute,

		RetentionDays:       30,
		MaintenanceInterval: 0,
		CompressUtilization: 0.9,
		MaintenanceWorkers:  4,

		ContextMaxItems:  50,
		ContextMaxTokens: 4000,

		Consistency: DefaultConsistencyConfig(),
	}
}

// DefaultConsistencyConfig 返回默认一致性检查阈值
func DefaultConsistencyConfig() ConsistencyConfig {
	return ConsistencyConfig{
		CandidateSimilarity: 0.3,
		ConflictSimilarity:  0.5,
		MinSharedKeywords:   3,
		KeywordCount:        20,
	}
}

// DefaultEngineConfig 返回默认压缩引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RateLimitRPS:     0,
		RateLimitBurst:   5,
		CacheEnabled:     false,
		CacheTTL:         30 * time.Minute,
		SummaryMaxLength: 200,
		TokenizerModel:   "estimator",
		Instrumented:     false,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "novelmemory:engine:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "novelmemory",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "novelmemory",
	}
}
