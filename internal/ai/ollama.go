package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/stockinsight/internal/config"
	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "phi3"
	healthProbeTimeout   = 5 * time.Second
)

// RemoteError is returned when the endpoint gave no usable response.
type RemoteError struct {
	Provider   string
	Method     string
	URL        string
	StatusCode int
	Elapsed    time.Duration
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s %s: HTTP %d after %s", e.Provider, e.Method, e.URL, e.StatusCode, e.Elapsed.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s %s %s failed after %s: %v", e.Provider, e.Method, e.URL, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrRemoteUnavailable}
	}
	return []error{domain.ErrRemoteUnavailable, e.Err}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Model    string  `json:"model"`
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// OllamaStrategy sends prompts to an Ollama compatible /api/generate endpoint.
type OllamaStrategy struct {
	baseURL    string
	model      string
	options    generateOptions
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewOllamaStrategy(cfg config.AIConfig) *OllamaStrategy {
	baseURL := strings.TrimRight(cfg.OllamaBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := cfg.OllamaModel
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := time.Duration(cfg.OllamaTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OllamaStrategy{
		baseURL: baseURL,
		model:   model,
		options: generateOptions{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			NumPredict:  cfg.NumPredict,
		},
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Logger,
	}
}

func (o *OllamaStrategy) Name() string { return StrategyOllama }

func (o *OllamaStrategy) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt, err := analysisPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build analysis prompt: %w", err)
	}

	text, err := o.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result, err := parseAnalysis(text, req.AnalysisType)
	if err != nil {
		o.logger.Debug().Err(err).Str("analysis_type", string(req.AnalysisType)).Msg("ai: ollama response unparseable, using text fallback")
		return fallbackAnalysis(text, req.AnalysisType), nil
	}
	result.GeneratedBy = StrategyOllama
	return result, nil
}

func (o *OllamaStrategy) Generate(ctx context.Context, req domain.ReportRequest) (*domain.ReportPayload, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt, err := reportPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build report prompt: %w", err)
	}

	text, err := o.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	payload, err := parseReport(text, req.ReportType)
	if err != nil {
		o.logger.Debug().Err(err).Str("report_type", req.ReportType).Msg("ai: ollama report unparseable, using text fallback")
		return fallbackReport(text, req.ReportType), nil
	}
	payload.GeneratedBy = StrategyOllama
	return payload, nil
}

// IsAvailable probes GET /api/tags with a bounded timeout.
func (o *OllamaStrategy) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Debug().Err(err).Str("url", o.baseURL).Msg("ai: ollama probe failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// generate issues one non-streaming completion and returns the free text.
func (o *OllamaStrategy) generate(ctx context.Context, prompt string) (string, error) {
	url := o.baseURL + "/api/generate"
	body, err := json.Marshal(generateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Options: o.options,
	})
	if err != nil {
		return "", fmt.Errorf("encode ollama request: %w", err)
	}

	start := time.Now()
	remoteErr := func(status int, cause error) error {
		return &RemoteError{
			Provider:   StrategyOllama,
			Method:     http.MethodPost,
			URL:        url,
			StatusCode: status,
			Elapsed:    time.Since(start),
			Err:        cause,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", remoteErr(0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", remoteErr(resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", remoteErr(resp.StatusCode, fmt.Errorf("%s", truncate(string(raw), 200)))
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", remoteErr(0, fmt.Errorf("decode envelope: %w", err))
	}
	if out.Response == nil {
		return "", remoteErr(0, fmt.Errorf("response field missing"))
	}

	o.logger.Debug().
		Str("model", o.model).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(*out.Response)).
		Msg("ai: ollama completion received")

	return *out.Response, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
