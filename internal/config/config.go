package config

import (
	"errors"
	"strings"
	"time"

	"alcyxob/climb-sim/internal/logger"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	S3         S3Config         `mapstructure:"s3"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        logger.Config    `mapstructure:"log"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"` // gin mode: debug, release, test
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// JWTConfig defines JWT specific configuration.
// Expiration is a duration string in the file ("60m", "1h").
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// SimulationConfig tunes the episode engine.
type SimulationConfig struct {
	MaxSteps      int     `mapstructure:"max_steps"`
	ParameterSet  string  `mapstructure:"parameter_set"`
	ParameterFile string  `mapstructure:"parameter_file"`
	HiThreshold   float64 `mapstructure:"hi_threshold"`
	PhaseLength   int     `mapstructure:"phase_length"`
	ExportPrefix  string  `mapstructure:"export_prefix"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "climb_sim")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.presign_expiry", "15m")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("simulation.max_steps", 24)
	v.SetDefault("simulation.parameter_set", "default-v1")
	v.SetDefault("simulation.hi_threshold", 0.85)
	v.SetDefault("simulation.phase_length", 3)
	v.SetDefault("simulation.export_prefix", "trajectories")
}

// LoadConfig reads configuration from path/config.yaml and the environment.
// A missing file is not an error; defaults and env vars apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	SetDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	} else if err != nil {
		return
	}

	// Duration strings decode straight into time.Duration fields.
	err = v.Unmarshal(&config)
	return
}
