// config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration        `mapstructure:"server"`
	Redis         RedisConfiguration         `mapstructure:"redis"`
	Neo4j         Neo4jConfiguration         `mapstructure:"neo4j"`
	Elasticsearch ElasticsearchConfiguration `mapstructure:"elasticsearch"`
	Cache         CacheConfiguration         `mapstructure:"cache"`
	Warming       WarmingConfiguration       `mapstructure:"warming"`
	Stats         StatsConfiguration         `mapstructure:"stats"`
	Log           LogConfiguration           `mapstructure:"log"`
}

// ServerConfiguration stores the port and other settings of the ops HTTP surface
type ServerConfiguration struct {
	Port      string                 `mapstructure:"port" validate:"required"`
	RateLimit RateLimitConfiguration `mapstructure:"rateLimit"`
}

type RateLimitConfiguration struct {
	Requests int           `mapstructure:"requests" validate:"gte=0"`
	Window   time.Duration `mapstructure:"window" validate:"gte=0"`
}

// RedisConfiguration stores data for the ephemeral tier connection
type RedisConfiguration struct {
	Addr         string        `mapstructure:"addr" validate:"required,hostname_port"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"gte=0"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout" validate:"gt=0"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" validate:"gt=0"`
	PoolSize     int           `mapstructure:"poolSize" validate:"gt=0"`
	PoolTimeout  time.Duration `mapstructure:"poolTimeout" validate:"gt=0"`
	MaxRetries   int           `mapstructure:"maxRetries" validate:"gte=-1"`
}

// Neo4jConfiguration stores data for the durable tier connection
type Neo4jConfiguration struct {
	URI          string        `mapstructure:"uri" validate:"required,uri"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	Database     string        `mapstructure:"database"`
	MaxPoolSize  int           `mapstructure:"maxPoolSize" validate:"gt=0"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" validate:"gt=0"`
}

// ElasticsearchConfiguration stores data for the audit trail
type ElasticsearchConfiguration struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
	Index   string `mapstructure:"index" validate:"required_if=Enabled true"`
}

// CacheConfiguration governs keys, tiers and single-flight behaviour
type CacheConfiguration struct {
	Namespace            string        `mapstructure:"namespace" validate:"required,excludesall=:*?[]"`
	TTL                  time.Duration `mapstructure:"ttl" validate:"gt=0"`
	RetentionWindow      time.Duration `mapstructure:"retentionWindow" validate:"gt=0"`
	CompressionThreshold int           `mapstructure:"compressionThreshold" validate:"gte=0"`
	OpTimeout            time.Duration `mapstructure:"opTimeout" validate:"gt=0"`
	ScanBatchSize        int64         `mapstructure:"scanBatchSize" validate:"gt=0"`
	ScanMaxRounds        int           `mapstructure:"scanMaxRounds" validate:"gt=0"`
	SingleFlight         bool          `mapstructure:"singleFlight"`
	LeaseTTL             time.Duration `mapstructure:"leaseTTL" validate:"gte=0"`
	LeaseWait            time.Duration `mapstructure:"leaseWait" validate:"gte=0"`
	ReadRepairTimeout    time.Duration `mapstructure:"readRepairTimeout" validate:"gt=0"`
}

// WarmingConfiguration drives the periodic fast-tier warming job
type WarmingConfiguration struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	Window      time.Duration `mapstructure:"window" validate:"gt=0"`
	BatchLimit  int           `mapstructure:"batchLimit" validate:"gt=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
}

// StatsConfiguration holds the savings model and health thresholds
type StatsConfiguration struct {
	Interval        time.Duration `mapstructure:"interval" validate:"gt=0"`
	Window          time.Duration `mapstructure:"window" validate:"gt=0"`
	UnitCost        float64       `mapstructure:"unitCost" validate:"gte=0"`
	Currency        string        `mapstructure:"currency"`
	WarningHitRate  float64       `mapstructure:"warningHitRate" validate:"gte=0,lte=1"`
	DegradedHitRate float64       `mapstructure:"degradedHitRate" validate:"gte=0,lte=1,ltefield=WarningHitRate"`
	MinSamples      int64         `mapstructure:"minSamples" validate:"gte=0"`
}

type LogConfiguration struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `mapstructure:"dir"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rateLimit.requests", 30)
	v.SetDefault("server.rateLimit.window", time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dialTimeout", 2*time.Second)
	v.SetDefault("redis.readTimeout", 500*time.Millisecond)
	v.SetDefault("redis.writeTimeout", 500*time.Millisecond)
	v.SetDefault("redis.poolSize", 20)
	v.SetDefault("redis.poolTimeout", time.Second)
	v.SetDefault("redis.maxRetries", 1)

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("neo4j.maxPoolSize", 50)
	v.SetDefault("neo4j.readTimeout", 2*time.Second)
	v.SetDefault("neo4j.writeTimeout", 10*time.Second)

	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.url", "http://localhost:9200")
	v.SetDefault("elasticsearch.index", "cache-audit")

	v.SetDefault("cache.namespace", "score")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.retentionWindow", 30*24*time.Hour)
	v.SetDefault("cache.compressionThreshold", 1024)
	v.SetDefault("cache.opTimeout", 250*time.Millisecond)
	v.SetDefault("cache.scanBatchSize", 500)
	v.SetDefault("cache.scanMaxRounds", 20)
	v.SetDefault("cache.singleFlight", true)
	v.SetDefault("cache.leaseTTL", 0)
	v.SetDefault("cache.leaseWait", 5*time.Second)
	v.SetDefault("cache.readRepairTimeout", time.Second)

	v.SetDefault("warming.enabled", true)
	v.SetDefault("warming.interval", 15*time.Minute)
	v.SetDefault("warming.window", 6*time.Hour)
	v.SetDefault("warming.batchLimit", 5000)
	v.SetDefault("warming.concurrency", 8)

	v.SetDefault("stats.interval", 5*time.Minute)
	v.SetDefault("stats.window", 24*time.Hour)
	v.SetDefault("stats.unitCost", 0.002)
	v.SetDefault("stats.currency", "USD")
	v.SetDefault("stats.warningHitRate", 0.5)
	v.SetDefault("stats.degradedHitRate", 0.2)
	v.SetDefault("stats.minSamples", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
}

// BindFlags registers the command-line flags that may override file settings.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to the YAML config file")
	fs.String("log.level", "", "log level: debug/info/warn/error")
	fs.String("server.port", "", "port of the ops HTTP surface")
}

// Load reads the configuration from the optional file at path, the
// environment (SCORECACHE_ prefix) and flags, then validates it.
// Every failure is a *errors.ConfigurationError.
func Load(path string, fs *pflag.FlagSet) (*Configuration, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("SCORECACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := bindChangedFlags(v, fs); err != nil {
			return nil, &cache_errors.ConfigurationError{Reason: "binding flags", Err: err}
		}
		if path == "" {
			path, _ = fs.GetString("config")
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &cache_errors.ConfigurationError{Reason: "reading config file", Err: err}
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &cache_errors.ConfigurationError{Reason: "decoding config", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindChangedFlags binds only flags set on the command line so that empty
// flag defaults never shadow file or environment values.
func bindChangedFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(f.Name, f)
	})
	return bindErr
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration and reports the first offending field.
func (c *Configuration) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &cache_errors.ConfigurationError{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("failed %q validation", fe.Tag()),
		}
	}
	return &cache_errors.ConfigurationError{Err: err}
}
