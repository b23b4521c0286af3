package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/orbitmr/shuttle/internal/tracker/partition"
)

// TrackerConfig contains all configuration for the job tracker service:
// a set of tunables under spec §6, plus the server front doors and
// checkpoint store location.
type TrackerConfig struct {
	REST    RESTConfig    `mapstructure:"rest"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Store   StoreConfig   `mapstructure:"store"`
	Job     JobTunables   `mapstructure:"job"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig selects and configures the Checkpoint Store backend.
type StoreConfig struct {
	Kind string `mapstructure:"kind"` // "memory" or "file"
	Dir  string `mapstructure:"dir"`
}

// JobTunables carries every default tunable of spec §6, applied to a
// JobDescriptor unless a submission overrides it.
type JobTunables struct {
	ReplicaBegin         int           `mapstructure:"replica_begin"`
	ReplicaBeginPercent  int           `mapstructure:"replica_begin_percent"`
	ReplicaNum           int           `mapstructure:"replica_num"`
	LeftPercent          int           `mapstructure:"left_percent"`
	FirstSleepTime       time.Duration `mapstructure:"first_sleep_time"`
	TimeTolerance        time.Duration `mapstructure:"time_tolerance"`
	MapRetry             int           `mapstructure:"map_retry"`
	ReduceRetry          int           `mapstructure:"reduce_retry"`
	ParallelAttempts     int           `mapstructure:"parallel_attempts"`
	MaxCountersPerJob    int           `mapstructure:"max_counters_per_job"`
	InputBlockSize       int64         `mapstructure:"input_block_size"`
	IgnoreMapFailures    int           `mapstructure:"ignore_map_failures"`
	IgnoreReduceFailures int           `mapstructure:"ignore_reduce_failures"`
}

// LoadTracker loads the tracker configuration from the given path.
// If configPath is empty, it looks for tracker.yaml in the config/ directory.
// Environment variables with SHUTTLE_TRACKER_ prefix override config file values.
func LoadTracker(configPath string) (*TrackerConfig, error) {
	v := viper.New()

	v.SetDefault("rest.addr", ":8081")
	v.SetDefault("rest.read_timeout", 15*time.Second)
	v.SetDefault("rest.write_timeout", 15*time.Second)
	v.SetDefault("rest.idle_timeout", 60*time.Second)
	v.SetDefault("grpc.addr", ":9091")
	v.SetDefault("grpc.enable_reflection", true)
	v.SetDefault("grpc.keepalive_min_time", 30*time.Second)
	v.SetDefault("store.kind", "memory")
	v.SetDefault("store.dir", "./data/checkpoints")
	v.SetDefault("job.replica_begin", 100)
	v.SetDefault("job.replica_begin_percent", 10)
	v.SetDefault("job.replica_num", 3)
	v.SetDefault("job.left_percent", 120)
	v.SetDefault("job.first_sleep_time", 10*time.Second)
	v.SetDefault("job.time_tolerance", 120*time.Second)
	v.SetDefault("job.map_retry", 4)
	v.SetDefault("job.reduce_retry", 4)
	v.SetDefault("job.parallel_attempts", 5)
	v.SetDefault("job.max_counters_per_job", 1000)
	v.SetDefault("job.input_block_size", partition.DefaultSplitSize)
	v.SetDefault("job.ignore_map_failures", 0)
	v.SetDefault("job.ignore_reduce_failures", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tracker")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHUTTLE_TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg TrackerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
