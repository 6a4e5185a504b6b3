// =============================================================================
// 📦 novelmemory 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("novelmemory.yaml").
//	    WithEnvPrefix("NOVELMEMORY").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 novelmemory 的完整配置结构
type Config struct {
	// Memory 分层记忆配置
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Engine 压缩引擎配置
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Redis 引擎结果缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ScopeConfig 单个作用域的容量与阈值
type ScopeConfig struct {
	// 最大条目数
	Capacity int `yaml:"capacity" env:"CAPACITY"`
	// 低于该重要性的条目参与摘要压缩
	CompressionThreshold int `yaml:"compression_threshold" env:"COMPRESSION_THRESHOLD"`
	// 达到该重要性的条目永不过期清理
	HighImportanceThreshold int `yaml:"high_importance_threshold" env:"HIGH_IMPORTANCE_THRESHOLD"`
}

// ConsistencyConfig 全局一致性检查的启发式阈值
type ConsistencyConfig struct {
	// 进入冲突判定的最低相似度
	CandidateSimilarity float64 `yaml:"candidate_similarity" env:"CANDIDATE_SIMILARITY"`
	// 低于该相似度且共享关键词足够多时判定为冲突
	ConflictSimilarity float64 `yaml:"conflict_similarity" env:"CONFLICT_SIMILARITY"`
	// 判定冲突所需的最少共享关键词数
	MinSharedKeywords int `yaml:"min_shared_keywords" env:"MIN_SHARED_KEYWORDS"`
	// 每段文本提取的关键词数
	KeywordCount int `yaml:"keyword_count" env:"KEYWORD_COUNT"`
}

// MemoryConfig 分层记忆配置
type MemoryConfig struct {
	Global    ScopeConfig `yaml:"global" env:"GLOBAL"`
	Volume    ScopeConfig `yaml:"volume" env:"VOLUME"`
	Chapter   ScopeConfig `yaml:"chapter" env:"CHAPTER"`
	Paragraph ScopeConfig `yaml:"paragraph" env:"PARAGRAPH"`

	// 合并近似条目的相似度阈值
	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"SIMILARITY_THRESHOLD"`
	// 允许压缩后仍满时超额写入（原始软上限行为）
	AllowOverflow bool `yaml:"allow_overflow" env:"ALLOW_OVERFLOW"`
	// 临时状态条目的回收年龄
	TemporaryStateMaxAge time.Duration `yaml:"temporary_state_max_age" env:"TEMPORARY_STATE_MAX_AGE"`

	// 过期清理保留天数
	RetentionDays int `yaml:"retention_days" env:"RETENTION_DAYS"`
	// 后台维护间隔，0 表示不启动
	MaintenanceInterval time.Duration `yaml:"maintenance_interval" env:"MAINTENANCE_INTERVAL"`
	// 利用率达到该值时维护任务触发压缩
	CompressUtilization float64 `yaml:"compress_utilization" env:"COMPRESS_UTILIZATION"`
	// 维护任务并发数
	MaintenanceWorkers int `yaml:"maintenance_workers" env:"MAINTENANCE_WORKERS"`

	// 上下文包默认条目数与 token 预算
	ContextMaxItems  int `yaml:"context_max_items" env:"CONTEXT_MAX_ITEMS"`
	ContextMaxTokens int `yaml:"context_max_tokens" env:"CONTEXT_MAX_TOKENS"`

	Consistency ConsistencyConfig `yaml:"consistency" env:"CONSISTENCY"`
}

// EngineConfig 压缩引擎配置
type EngineConfig struct {
	// 每秒允许的引擎调用数，0 表示不限流
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 是否启用 Redis 结果缓存
	CacheEnabled bool `yaml:"cache_enabled" env:"CACHE_ENABLED"`
	// 缓存过期时间
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// 压缩摘要的最大长度（字符）
	SummaryMaxLength int `yaml:"summary_max_length" env:"SUMMARY_MAX_LENGTH"`
	// 上下文预算使用的分词模型
	TokenizerModel string `yaml:"tokenizer_model" env:"TOKENIZER_MODEL"`
	// 是否启用 OpenTelemetry 埋点
	Instrumented bool `yaml:"instrumented" env:"INSTRUMENTED"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "NOVELMEMORY",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// time.Duration 以外的结构体递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置，汇总所有错误
func (c *Config) Validate() error {
	var errs []string

	scopes := []struct {
		name string
		sc   ScopeConfig
	}{
		{"global", c.Memory.Global},
		{"volume", c.Memory.Volume},
		{"chapter", c.Memory.Chapter},
		{"paragraph", c.Memory.Paragraph},
	}
	for _, s := range scopes {
		if s.sc.Capacity <= 0 {
			errs = append(errs, fmt.Sprintf("memory.%s.capacity must be positive", s.name))
		}
		if s.sc.CompressionThreshold < 1 || s.sc.CompressionThreshold > 10 {
			errs = append(errs, fmt.Sprintf("memory.%s.compression_threshold must be between 1 and 10", s.name))
		}
		if s.sc.HighImportanceThreshold < 1 || s.sc.HighImportanceThreshold > 10 {
			errs = append(errs, fmt.Sprintf("memory.%s.high_importance_threshold must be between 1 and 10", s.name))
		}
	}

	if c.Memory.SimilarityThreshold <= 0 || c.Memory.SimilarityThreshold > 1 {
		errs = append(errs, "memory.similarity_threshold must be in (0, 1]")
	}
	if c.Memory.RetentionDays < 0 {
		errs = append(errs, "memory.retention_days must not be negative")
	}
	if c.Memory.CompressUtilization < 0 || c.Memory.CompressUtilization > 1 {
		errs = append(errs, "memory.compress_utilization must be between 0 and 1")
	}
	cc := c.Memory.Consistency
	if cc.CandidateSimilarity < 0 || cc.ConflictSimilarity > 1 || cc.CandidateSimilarity > cc.ConflictSimilarity {
		errs = append(errs, "memory.consistency similarity thresholds must satisfy 0 <= candidate <= conflict <= 1")
	}
	if cc.MinSharedKeywords < 1 || cc.KeywordCount < cc.MinSharedKeywords {
		errs = append(errs, "memory.consistency keyword settings are inconsistent")
	}

	if c.Engine.RateLimitRPS < 0 {
		errs = append(errs, "engine.rate_limit_rps must not be negative")
	}
	if c.Engine.CacheEnabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when engine.cache_enabled is true")
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("unsupported log format %q", c.Log.Format))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
