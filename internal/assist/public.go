package assist

import "github.com/michal-palko/smart-claimer/internal/config"

// ProxyPath is where the browser sends chat requests.
const ProxyPath = "/api/openai/chat"

// FrontendConfig is the presentation config served to the browser.
// It never carries the API key.
type FrontendConfig struct {
	Whisper WhisperSettings `json:"whisper"`
	OpenAI  OpenAISettings  `json:"openai"`
}

type WhisperSettings struct {
	APIURL           string  `json:"apiUrl"`
	Language         string  `json:"language"`
	Prompt           string  `json:"prompt"`
	Temperature      float64 `json:"temperature"`
	MaxRecordingTime int     `json:"maxRecordingTime"`
}

type OpenAISettings struct {
	APIURL        string  `json:"apiUrl"`
	Model         string  `json:"model"`
	MaxTokens     int     `json:"maxTokens"`
	Temperature   float64 `json:"temperature"`
	DefaultPrompt string  `json:"defaultPrompt"`
}

func PublicConfig(openai config.OpenAIConfig, whisper config.WhisperConfig) FrontendConfig {
	return FrontendConfig{
		Whisper: WhisperSettings{
			APIURL:           whisper.APIURL,
			Language:         whisper.Language,
			Prompt:           whisper.Prompt,
			Temperature:      whisper.Temperature,
			MaxRecordingTime: whisper.MaxRecordingTime,
		},
		OpenAI: OpenAISettings{
			APIURL:        ProxyPath,
			Model:         openai.Model,
			MaxTokens:     openai.MaxTokens,
			Temperature:   openai.Temperature,
			DefaultPrompt: openai.DefaultPrompt,
		},
	}
}
