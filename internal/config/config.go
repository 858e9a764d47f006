package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config stores runtime configuration for the interview client.
type Config struct {
	Backend  BackendConfig
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Session  SessionConfig
	LogLevel string `validate:"required"`
}

type BackendConfig struct {
	BaseURL             string `validate:"required,url"`
	RegistrationTimeout time.Duration
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string `validate:"required,url"`
	Model       string `validate:"required"`
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string `validate:"required"`
	InputFormat     string `validate:"required"`
	InputDevice     string `validate:"required"`
	SampleRate      int    `validate:"gt=0"`
	Channels        int    `validate:"gt=0"`
}

type SessionConfig struct {
	ChunkSize      int `validate:"gte=256"`
	StartTimeout   time.Duration
	VolumeInterval time.Duration `validate:"gt=0"`
}

// Load resolves configuration from the environment, an optional env file and defaults.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := strings.TrimSpace(os.Getenv("INTERVIEWMIC_ENV_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read env file %q: %w", path, err)
		}
	}

	cfg := Config{
		Backend: BackendConfig{
			BaseURL:             stringOrDefault(v, "INTERVIEWMIC_BACKEND_URL"),
			RegistrationTimeout: millisOrDefault(v, "REGISTRATION_TIMEOUT_MS"),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(v.GetString("DEEPGRAM_API_KEY")),
			APIBaseURL:  stringOrDefault(v, "DEEPGRAM_API_BASE"),
			Model:       stringOrDefault(v, "DEEPGRAM_MODEL"),
			Language:    strings.TrimSpace(v.GetString("DEEPGRAM_LANGUAGE")),
			SmartFormat: boolOrDefault(v, "DEEPGRAM_SMART_FORMAT"),
		},
		Audio: AudioConfig{
			RecorderCommand: stringOrDefault(v, "INTERVIEWMIC_FFMPEG_COMMAND"),
			InputFormat:     stringOrDefault(v, "INTERVIEWMIC_AUDIO_INPUT_FORMAT"),
			InputDevice:     stringOrDefault(v, "INTERVIEWMIC_AUDIO_INPUT_DEVICE"),
			SampleRate:      positiveIntOrDefault(v, "INTERVIEWMIC_SAMPLE_RATE"),
			Channels:        positiveIntOrDefault(v, "INTERVIEWMIC_CHANNELS"),
		},
		Session: SessionConfig{
			ChunkSize:      positiveIntOrDefault(v, "INTERVIEWMIC_AUDIO_CHUNK_SIZE"),
			StartTimeout:   millisOrDefault(v, "CAPTURE_START_TIMEOUT_MS"),
			VolumeInterval: millisOrDefault(v, "VOLUME_INTERVAL_MS"),
		},
		LogLevel: stringOrDefault(v, "INTERVIEWMIC_LOG_LEVEL"),
	}

	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.VolumeInterval <= 0 {
		cfg.Session.VolumeInterval = 100 * time.Millisecond
	}

	if err := validator.New().Struct(&cfg); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			return Config{}, fmt.Errorf("invalid configuration: %s failed %q", invalid[0].Namespace(), invalid[0].Tag())
		}
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("INTERVIEWMIC_BACKEND_URL", "http://127.0.0.1:5000")
	v.SetDefault("REGISTRATION_TIMEOUT_MS", 30000)
	v.SetDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1")
	v.SetDefault("DEEPGRAM_MODEL", "nova-2")
	v.SetDefault("DEEPGRAM_SMART_FORMAT", true)
	v.SetDefault("INTERVIEWMIC_FFMPEG_COMMAND", "ffmpeg")
	v.SetDefault("INTERVIEWMIC_AUDIO_INPUT_FORMAT", "pulse")
	v.SetDefault("INTERVIEWMIC_AUDIO_INPUT_DEVICE", "default")
	v.SetDefault("INTERVIEWMIC_SAMPLE_RATE", 16000)
	v.SetDefault("INTERVIEWMIC_CHANNELS", 1)
	v.SetDefault("INTERVIEWMIC_AUDIO_CHUNK_SIZE", 4096)
	v.SetDefault("CAPTURE_START_TIMEOUT_MS", 10000)
	v.SetDefault("VOLUME_INTERVAL_MS", 100)
	v.SetDefault("INTERVIEWMIC_LOG_LEVEL", "info")
}

func defaultOf(key string) any {
	v := viper.New()
	setDefaults(v)
	return v.Get(key)
}

func stringOrDefault(v *viper.Viper, key string) string {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return fmt.Sprint(defaultOf(key))
	}
	return value
}

func positiveIntOrDefault(v *viper.Viper, key string) int {
	parsed, ok := parseInt(v.GetString(key))
	if !ok || parsed <= 0 {
		return defaultOf(key).(int)
	}
	return parsed
}

// millisOrDefault accepts zero so timeouts can be disabled.
func millisOrDefault(v *viper.Viper, key string) time.Duration {
	parsed, ok := parseInt(v.GetString(key))
	if !ok || parsed < 0 {
		parsed = defaultOf(key).(int)
	}
	return time.Duration(parsed) * time.Millisecond
}

func boolOrDefault(v *viper.Viper, key string) bool {
	switch strings.TrimSpace(strings.ToLower(v.GetString(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultOf(key).(bool)
	}
}

func parseInt(value string) (int, bool) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return parsed, true
}
