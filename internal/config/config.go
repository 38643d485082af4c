package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string `yaml:"log-level" env-default:"info"`
	TCPPort  string `yaml:"tcp-port" env-default:"5050"`
	HTTPPort string `yaml:"http-port" env-default:"9090"`

	Redis      Redis      `yaml:"redis"`
	Game       Game       `yaml:"game"`
	Tournament Tournament `yaml:"tournament"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

type Game struct {
	// DefaultTimerSec is the per-turn time limit for clients that never send
	// SETTINGS.
	DefaultTimerSec int `yaml:"default-timer-sec" env-default:"15"`
	// SessionLingerSec keeps a finished session listed so late LIST and
	// SPECTATE requests still resolve it.
	SessionLingerSec int `yaml:"session-linger-sec" env-default:"10"`
}

type Tournament struct {
	TurnTimerSec  int `yaml:"turn-timer-sec" env-default:"15"`
	RoundPauseSec int `yaml:"round-pause-sec" env-default:"2"`
	// DrawAdvances names the side that advances from a drawn bracket match.
	DrawAdvances string `yaml:"draw-advances" env-default:"X"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
