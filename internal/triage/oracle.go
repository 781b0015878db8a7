package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OracleClassification is what the external provider returns for an utterance.
type OracleClassification struct {
	Department string
	Confidence float64
}

// Oracle is the external classification/translation capability. Both calls
// honor context cancellation; callers bound them with a deadline and take the
// fallback path once it fires, discarding any late result.
type Oracle interface {
	Classify(ctx context.Context, text, lang string) (OracleClassification, error)
	Translate(ctx context.Context, templateID, lang string) (string, error)
}

// HTTPOracle talks JSON over HTTP to the configured provider.
type HTTPOracle struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPOracle(baseURL, apiKey string, timeout time.Duration) *HTTPOracle {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPOracle{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type classifyResponse struct {
	Department string  `json:"department"`
	Confidence float64 `json:"confidence"`
}

type translateRequest struct {
	TemplateID string `json:"template_id"`
	Language   string `json:"language"`
}

type translateResponse struct {
	Text string `json:"text"`
}

func (o *HTTPOracle) Classify(ctx context.Context, text, lang string) (OracleClassification, error) {
	var resp classifyResponse
	err := o.post(ctx, "/v1/classify", classifyRequest{Text: text, Language: lang}, &resp)
	if err != nil {
		return OracleClassification{}, err
	}
	if resp.Department == "" {
		return OracleClassification{}, fmt.Errorf("%w: empty department in response", ErrOracleUnavailable)
	}
	return OracleClassification{Department: resp.Department, Confidence: resp.Confidence}, nil
}

func (o *HTTPOracle) Translate(ctx context.Context, templateID, lang string) (string, error) {
	var resp translateResponse
	err := o.post(ctx, "/v1/translate", translateRequest{TemplateID: templateID, Language: lang}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Text == "" {
		return "", fmt.Errorf("%w: empty translation in response", ErrOracleUnavailable)
	}
	return resp.Text, nil
}

// post wraps every transport or decode failure in ErrOracleUnavailable so
// callers have a single error to convert into fallback behavior.
func (o *HTTPOracle) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrOracleUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrOracleUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	httpResp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 256))
		return fmt.Errorf("%w: status %d: %s", ErrOracleUnavailable, httpResp.StatusCode, snippet)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrOracleUnavailable, err)
	}
	return nil
}
