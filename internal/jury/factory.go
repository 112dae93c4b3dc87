package jury

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/trustbutverify/internal/model"
	"github.com/ppiankov/trustbutverify/internal/util"
	"github.com/ppiankov/trustbutverify/internal/worker"
)

const (
	defaultLocalBaseURL = "http://localhost:1234/v1"
	defaultLocalAPIKey  = "lm-studio"
)

// NewJuror creates a juror based on configuration
func NewJuror(cfg model.JurorConfig) (Juror, error) {
	name := cfg.Name
	if name == "" {
		name = cfg.Provider
	}
	httpClient := util.NewHTTPClient(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIJuror(name, cfg.Model, apiKey(cfg, "OPENAI_API_KEY"), cfg.BaseURL, httpClient)

	case "local":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("LOCAL_LLM_BASE_URL")
		}
		if baseURL == "" {
			baseURL = defaultLocalBaseURL
		}
		key := apiKey(cfg, "")
		if key == "" {
			key = defaultLocalAPIKey
		}
		modelName := cfg.Model
		if modelName == "" {
			modelName = "local-model"
		}
		return NewOpenAIJuror(name, modelName, key, baseURL, httpClient)

	case "anthropic", "claude":
		return NewAnthropicJuror(name, cfg.Model, apiKey(cfg, "ANTHROPIC_API_KEY"), cfg.BaseURL, httpClient)

	case "ollama":
		return NewOllamaJuror(name, cfg.Model, cfg.BaseURL, httpClient)

	default:
		return nil, fmt.Errorf("unknown juror provider: %s (supported: openai, local, anthropic, ollama)", cfg.Provider)
	}
}

func apiKey(cfg model.JurorConfig, fallbackEnv string) string {
	env := cfg.APIKeyEnv
	if env == "" {
		env = fallbackEnv
	}
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// NewPanelFromConfig builds every configured juror, each with its own
// rate limit, timeout and retry budget
func NewPanelFromConfig(cfg model.JuryConfig, phaseTimeout time.Duration, opts ...Option) (*Panel, error) {
	if len(cfg.Jurors) == 0 {
		return nil, ErrNoJurors
	}

	limiter := worker.NewLimiter(0, 1)
	members := make([]Member, 0, len(cfg.Jurors))
	for _, jc := range cfg.Jurors {
		juror, err := NewJuror(jc)
		if err != nil {
			return nil, err
		}
		limiter.SetRate(juror.Name(), jc.RequestsPerSecond, jc.Burst)
		members = append(members, Member{
			Juror:      juror,
			Timeout:    jc.Timeout,
			MaxRetries: jc.MaxRetries,
		})
	}

	opts = append([]Option{WithLimiter(limiter), WithPhaseTimeout(phaseTimeout)}, opts...)
	return NewPanel(members, opts...)
}
