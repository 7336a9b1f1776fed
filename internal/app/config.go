package app

import (
	"github.com/telansky/multigpt/internal/platform/envutil"
	"github.com/telansky/multigpt/internal/platform/localmedia"
	"github.com/telansky/multigpt/internal/platform/ollamalocal"
	"github.com/telansky/multigpt/internal/platform/openai"
)

type Config struct {
	Port    string
	GinMode string

	// MaxUploadBytes caps one uploaded file. 0 disables the check.
	MaxUploadBytes int64

	OpenAI openai.Config
	Ollama ollamalocal.Config
	Media  localmedia.Options
}

func LoadConfig() Config {
	return Config{
		Port:           envutil.Str("PORT", "8080"),
		GinMode:        envutil.Str("GIN_MODE", ""),
		MaxUploadBytes: int64(envutil.Int("MAX_UPLOAD_MB", 512)) << 20,
		OpenAI:         openai.ConfigFromEnv(),
		Ollama:         ollamalocal.ConfigFromEnv(),
		Media:          localmedia.OptionsFromEnv(),
	}
}
