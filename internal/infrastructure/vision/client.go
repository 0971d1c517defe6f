package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultConfidence = 0.7
	maxTokens         = 400
)

const systemPrompt = `You are a vehicle damage assessor. Look at the photo and answer with JSON only:
{"severity": "minor|moderate|severe", "confidence": 0.0-1.0, "damage_types": ["dent", "scratch", "crack", "break", "rust", "paint damage"], "description": "one sentence"}`

var codeBlockPattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ImageSource отдаёт содержимое сохранённого изображения. Если источник задан,
// изображение передаётся модели как data URL, иначе по ссылке.
type ImageSource interface {
	Open(ctx context.Context, reference string) ([]byte, error)
}

type ClientConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client анализирует фотографии через OpenAI-совместимый chat/completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	images     ImageSource
	httpClient *http.Client
	log        logrus.FieldLogger
}

func NewClient(cfg ClientConfig, images ImageSource, log logrus.FieldLogger) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		images:     images,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type assessment struct {
	Severity    string   `json:"severity"`
	Confidence  *float64 `json:"confidence"`
	DamageTypes []string `json:"damage_types"`
	Description string   `json:"description"`
}

// Analyze отправляет изображение модели и разбирает ответ. Ответ без
// корректного JSON классифицируется по ключевым словам.
func (c *Client) Analyze(ctx context.Context, reference string) (entity.DamageAnalysis, error) {
	imageURL, err := c.imageURL(ctx, reference)
	if err != nil {
		return entity.DamageAnalysis{}, apperror.Wrap(err, apperror.ErrCodeDependency, "изображение недоступно для анализа")
	}

	content, err := c.chatCompletion(ctx, imageURL)
	if err != nil {
		return entity.DamageAnalysis{}, apperror.Wrap(err, apperror.ErrCodeDependency, "сервис анализа изображений недоступен")
	}

	return c.toAnalysis(content), nil
}

func (c *Client) imageURL(ctx context.Context, reference string) (string, error) {
	if c.images == nil {
		return reference, nil
	}
	data, err := c.images.Open(ctx, reference)
	if err != nil {
		return "", err
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", errors.New("vision: не удалось определить тип изображения")
	}
	return "data:" + kind.MIME.Value + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (c *Client) chatCompletion(ctx context.Context, imageURL string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("vision: baseURL не задан")
	}

	payload := map[string]any{
		"model":       c.model,
		"max_tokens":  maxTokens,
		"temperature": 0,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": "Assess the vehicle damage in this photo."},
				{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
			}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return "", fmt.Errorf("vision: код ответа %d: %v", resp.StatusCode, errorBody)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("vision: пустой ответ")
	}

	return result.Choices[0].Message.Content, nil
}

func (c *Client) toAnalysis(content string) entity.DamageAnalysis {
	a, ok := parseAssessment(content)
	if !ok {
		c.log.WithField("response", truncate(content, 200)).Debug("vision: ответ без JSON, классификация по ключевым словам")
		words := strings.Fields(content)
		return entity.DamageAnalysis{
			Severity:    ClassifySeverity(content, nil),
			Confidence:  defaultConfidence,
			DamageTypes: ExtractDamageTypes(words),
			Description: strings.TrimSpace(content),
		}
	}

	severity, err := valueobject.NewSeverity(a.Severity)
	if err != nil {
		severity = ClassifySeverity(a.Description, a.DamageTypes)
	}

	confidence := defaultConfidence
	if a.Confidence != nil {
		confidence = *a.Confidence
	}

	types := normalizeDamageTypes(a.DamageTypes)
	if len(types) == 0 {
		types = ExtractDamageTypes(strings.Fields(a.Description))
	}

	return entity.DamageAnalysis{
		Severity:    severity,
		Confidence:  confidence,
		DamageTypes: types,
		Description: strings.TrimSpace(a.Description),
	}
}

// parseAssessment извлекает JSON из текста, который может содержать markdown.
func parseAssessment(text string) (assessment, bool) {
	var a assessment

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &a); err == nil {
			return a, true
		}
	}

	if m := codeBlockPattern.FindStringSubmatch(text); len(m) > 1 {
		if err := json.Unmarshal([]byte(m[1]), &a); err == nil {
			return a, true
		}
	}
	return a, false
}

func normalizeDamageTypes(types []string) []string {
	seen := make(map[string]struct{}, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
