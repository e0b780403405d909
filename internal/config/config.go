package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
)

const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	LogLevel     string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort     string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis        Redis    `yaml:"redis"`
	SessionStore string   `yaml:"session-store" env:"SESSION_STORE" env-default:"memory"`
	Brain        Brain    `yaml:"brain"`
	Rewards      Rewards  `yaml:"rewards"`
	Training     Training `yaml:"training"`
	Bot          Bot      `yaml:"bot"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Brain configures the two credit tables and how they are stored. Fresh
// starts from empty tables; RequireStored fails startup when a table has never
// been saved.
type Brain struct {
	Falloff       float64 `yaml:"falloff" env:"BRAIN_FALLOFF" env-default:"2"`
	Epsilon       float64 `yaml:"epsilon" env:"BRAIN_EPSILON"`
	Storage       string  `yaml:"storage" env:"BRAIN_STORAGE" env-default:"file"`
	FileX         string  `yaml:"file-x" env:"BRAIN_FILE_X" env-default:"brain1.json"`
	FileO         string  `yaml:"file-o" env:"BRAIN_FILE_O" env-default:"brain2.json"`
	Fresh         bool    `yaml:"fresh" env:"BRAIN_FRESH"`
	RequireStored bool    `yaml:"require-stored" env:"BRAIN_REQUIRE_STORED"`
}

type Rewards struct {
	Win   float64 `yaml:"win" env:"REWARD_WIN"`
	Lose  float64 `yaml:"lose" env:"REWARD_LOSE"`
	Draw  float64 `yaml:"draw" env:"REWARD_DRAW"`
	Block float64 `yaml:"block" env:"REWARD_BLOCK"`
}

type Training struct {
	Epochs          int `yaml:"epochs" env:"TRAINING_EPOCHS" env-default:"100000"`
	CheckpointEvery int `yaml:"checkpoint-every" env:"TRAINING_CHECKPOINT_EVERY"`
}

// Bot is the opponent of served sessions. Mark "none" disables it.
type Bot struct {
	Mark  string `yaml:"mark" env:"BOT_MARK" env-default:"O"`
	Learn bool   `yaml:"learn" env:"BOT_LEARN"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// defaults holds the settings where zero is a meaningful value. cleanenv only
// fills env-default into zero fields, so these are set before the file is read.
func defaults() *Config {
	return &Config{
		Brain: Brain{
			Epsilon: 0.01,
		},
		Rewards: Rewards{
			Win:   1,
			Lose:  -0.33,
			Draw:  0.2,
			Block: 0.5,
		},
		Training: Training{
			CheckpointEvery: 10000,
		},
	}
}

// Load reads path and validates the storage kinds.
func Load(path string) (*Config, error) {
	config := defaults()

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	switch that.Brain.Storage {
	case StorageFile, StorageRedis:
	default:
		return fmt.Errorf("%w: brain storage %q", apperror.ErrUnsupportedStorage, that.Brain.Storage)
	}

	switch that.SessionStore {
	case StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("%w: session store %q", apperror.ErrUnsupportedStorage, that.SessionStore)
	}

	switch that.Bot.Mark {
	case "X", "O", "none":
	default:
		return fmt.Errorf("unsupported bot mark %q", that.Bot.Mark)
	}

	if that.Brain.Falloff <= 0 {
		return fmt.Errorf("%w: got %v", apperror.ErrInvalidFalloff, that.Brain.Falloff)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
