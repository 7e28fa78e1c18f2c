package cmd

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-butler"
)

type Config struct {
	AI      *AIConfig      `mapstructure:"ai"`
	Router  *RouterConfig  `mapstructure:"router"`
	Prompts *PromptsConfig `mapstructure:"prompts"`
	Server  *ServerConfig  `mapstructure:"server"`
	Storage *StorageConfig `mapstructure:"storage"`
}

type AIConfig struct {
	Provider        string        `mapstructure:"provider"`
	MinimumFitScore float64       `mapstructure:"minimum-fit-score"`
	Gemini          *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	APIKey       string `mapstructure:"api-key"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type RouterConfig struct {
	MaxRounds       int           `mapstructure:"max-rounds"`
	ClassifyTimeout time.Duration `mapstructure:"classify-timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate-timeout"`
	HistoryWindow   int           `mapstructure:"history-window"`
	HistoryLimit    int           `mapstructure:"history-limit"`
}

type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

type ServerConfig struct {
	Listen    string `mapstructure:"listen"`
	TokenFile string `mapstructure:"token-file"`
}

type StorageConfig struct {
	// DataDir holds the transcript database. Empty disables transcripts.
	DataDir string `mapstructure:"data-dir"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-butler is a conversational assistant that builds, rewrites and tailors resumes",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("server.token-file", "RESUME_BUTLER_TOKEN_FILE"); err != nil {
		log.Fatalf("binding RESUME_BUTLER_TOKEN_FILE environment variable: %v", err)
	}

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.minimum-fit-score", 0.6)
	viper.SetDefault("router.max-rounds", 3)
	viper.SetDefault("router.classify-timeout", 10*time.Second)
	viper.SetDefault("router.generate-timeout", 90*time.Second)
	viper.SetDefault("router.history-window", 4)
	viper.SetDefault("router.history-limit", 20)
	viper.SetDefault("server.listen", "127.0.0.1:8080")
	viper.SetDefault("storage.data-dir", defaultDataDir())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-butler.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless it was given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Router == nil {
		config.Router = &RouterConfig{}
	}
	if config.Prompts == nil {
		config.Prompts = &PromptsConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.Storage == nil {
		config.Storage = &StorageConfig{}
	}

	return config, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + string(os.PathSeparator) + "." + app
}
