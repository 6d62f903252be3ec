// Package translate is the boundary to the external translation
// service: language detection plus translation through an
// OpenAI-compatible model gateway. Upstream trouble degrades to "show
// the original text"; translation must never block the chat.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxTextLength bounds a single translation request, in characters.
const MaxTextLength = 5000

const detectSystemPrompt = "You are a language detector. Respond with only the 2-letter ISO language code (e.g., 'en', 'es', 'ko', 'ja') of the given text. Nothing else."

const gatewayModel = "google/gemini-2.5-flash"

// ValidLanguages is the fixed set of accepted target language codes.
var ValidLanguages = map[string]bool{
	"en": true, "es": true, "fr": true, "de": true, "ja": true,
	"ko": true, "zh": true, "ar": true, "ru": true, "pt": true, "hi": true,
}

// Client-error sentinels (HTTP 400 at the handler).
var (
	ErrInvalidText     = errors.New("invalid text parameter")
	ErrTextTooLong     = errors.New("text too long")
	ErrInvalidLanguage = errors.New("invalid target language")
)

// ErrNotConfigured means the upstream credential is missing (HTTP 500).
var ErrNotConfigured = errors.New("translation gateway key not configured")

// Request is one translation attempt, in the client's camelCase wire
// shape. MessageID, when set, keys the at-most-once cache so a message
// is translated a single time.
type Request struct {
	MessageID      string `json:"messageId,omitempty"`
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
}

// Result mirrors the service contract. NeedsTranslation is true only
// when the detected language differs from the target and translation
// succeeded.
type Result struct {
	NeedsTranslation bool   `json:"needsTranslation"`
	OriginalText     string `json:"originalText"`
	TranslatedText   string `json:"translatedText,omitempty"`
	DetectedLanguage string `json:"detectedLanguage,omitempty"`
}

// Service calls the gateway and caches results per message ID.
type Service struct {
	gatewayURL string
	apiKey     string
	client     *http.Client

	mu    sync.Mutex
	cache map[string]Result
}

// NewService constructs the translation boundary.
func NewService(gatewayURL, apiKey string) *Service {
	return &Service{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 30 * time.Second},
		cache:      make(map[string]Result),
	}
}

// Validate classifies malformed requests before any upstream call.
func Validate(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrInvalidText
	}
	if utf8.RuneCountInString(req.Text) > MaxTextLength {
		return ErrTextTooLong
	}
	if !ValidLanguages[strings.ToLower(req.TargetLanguage)] {
		return ErrInvalidLanguage
	}
	return nil
}

// Translate detects the text's language and translates when it differs
// from the target. Gateway failures degrade to the original text with a
// nil error; only misuse (validation, missing credentials) errors.
func (s *Service) Translate(ctx context.Context, req Request) (Result, error) {
	if err := Validate(req); err != nil {
		return Result{}, err
	}
	if s.apiKey == "" {
		return Result{}, ErrNotConfigured
	}

	target := strings.ToLower(req.TargetLanguage)

	if req.MessageID != "" {
		s.mu.Lock()
		cached, ok := s.cache[req.MessageID]
		s.mu.Unlock()
		if ok {
			return cached, nil
		}
	}

	result := s.translateUncached(ctx, req.Text, target)

	if req.MessageID != "" {
		s.mu.Lock()
		s.cache[req.MessageID] = result
		s.mu.Unlock()
	}
	return result, nil
}

func (s *Service) translateUncached(ctx context.Context, text, target string) Result {
	degraded := Result{NeedsTranslation: false, OriginalText: text}

	detected, err := s.complete(ctx, detectSystemPrompt, text)
	if err != nil {
		log.Printf("translate: language detection failed: %v", err)
		return degraded
	}
	detected = strings.ToLower(strings.TrimSpace(detected))

	if detected == target {
		degraded.DetectedLanguage = detected
		return degraded
	}

	translatePrompt := fmt.Sprintf(
		"You are a professional translator. Translate the given text to %s. Respond with ONLY the translated text, nothing else. Maintain the tone and style of the original message.",
		target)
	translated, err := s.complete(ctx, translatePrompt, text)
	if err != nil {
		log.Printf("translate: translation failed: %v", err)
		return degraded
	}

	return Result{
		NeedsTranslation: true,
		OriginalText:     text,
		TranslatedText:   strings.TrimSpace(translated),
		DetectedLanguage: detected,
	}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *Service) complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model: gatewayModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway status %d: %s", resp.StatusCode, snippet)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("gateway returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
