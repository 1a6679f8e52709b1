package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/resume-ranker/internal/config"
)

const (
	app = "resume-ranker"

	envPrefix = "RANKER"
)

type Config struct {
	Mongo    MongoConfig         `mapstructure:"mongo"`
	Redis    RedisConfig         `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig      `mapstructure:"rabbitmq"`
	AI       AIConfig            `mapstructure:"ai"`
	Server   ServerConfig        `mapstructure:"server"`
	Matching config.Matching     `mapstructure:"matching"`
	Regions  map[string][]string `mapstructure:"regions"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	URIFile  string `mapstructure:"uri-file"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	PasswordFile string        `mapstructure:"password-file"`
	DB           int           `mapstructure:"db"`
	LockTTL      time.Duration `mapstructure:"lock-ttl"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	URLFile  string `mapstructure:"url-file"`
	Queue    string `mapstructure:"queue"`
	Prefetch int    `mapstructure:"prefetch"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "resume-ranker matches resumes against job descriptions and returns a ranked shortlist",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	if err := bindEnv(viper.GetViper()); err != nil {
		log.Fatalf("binding environment variables: %v", err)
	}
	setDefaults(viper.GetViper())
}

var envReplacer = strings.NewReplacer("-", "_", ".", "_")

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	// Well-known names used by the deployment manifests.
	for key, env := range map[string]string{
		"mongo.uri":              "MONGO_URI",
		"mongo.uri-file":         "MONGO_URI_FILE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"rabbitmq.url":           "RABBITMQ_URL",
		"redis.addr":             "REDIS_ADDR",
	} {
		prefixed := envPrefix + "_" + envReplacer.Replace(strings.ToUpper(key))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := config.DefaultMatching()
	v.SetDefault("matching.candidates-to-score", d.CandidatesToScore)
	v.SetDefault("matching.top-results-returned", d.TopResultsReturned)
	v.SetDefault("matching.batch-size", d.BatchSize)
	v.SetDefault("matching.parallel-workers", d.ParallelWorkers)
	v.SetDefault("matching.title-similarity-threshold", d.TitleSimilarityThreshold)
	v.SetDefault("matching.title-threshold-inclusive", d.TitleThresholdInclusive)
	v.SetDefault("matching.top-limit", d.TopLimit)
	v.SetDefault("matching.score-timeout", d.ScoreTimeout)
	v.SetDefault("matching.strategy", d.Strategy)

	v.SetDefault("mongo.database", "resumes_database")
	v.SetDefault("rabbitmq.prefetch", 1)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown-timeout", 15*time.Second)
}

func initConfig() {
	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		log.Fatal(err)
	}
}

// readConfig loads the config file. A missing default file is not an error;
// every key can also come from the environment.
func readConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(app)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func getConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Matching = cfg.Matching.WithDefaults()
	if err := cfg.Matching.Validate(); err != nil {
		return nil, fmt.Errorf("matching config: %w", err)
	}
	if cfg.AI.Gemini == nil {
		cfg.AI.Gemini = &GeminiConfig{}
	}

	return &cfg, nil
}
