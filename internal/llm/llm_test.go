package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"chefmate-backend/internal/models"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(rt roundTripperFunc) *http.Client {
	return &http.Client{Transport: rt}
}

func newJSONResponse(t *testing.T, req *http.Request, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	resp := &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(data)),
		Request:    req,
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

func completionPayload(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotPayload map[string]any

	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		gotAuth = req.Header.Get("Authorization")

		if req.Body == nil {
			t.Fatalf("expected request body")
		}
		if err := json.NewDecoder(req.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		_ = req.Body.Close()

		return newJSONResponse(t, req, http.StatusOK, completionPayload("  Sure, here is a recipe.  ")), nil
	})

	provider := newOpenAIProviderWithHTTPClient("test-key", "https://openai.test", client)

	resp, err := provider.Complete(context.Background(), ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "be a chef"},
			{Role: models.RoleUser, Content: "dinner ideas"},
		},
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	if resp.Content != "  Sure, here is a recipe.  " {
		t.Errorf("Expected raw provider content, got %q", resp.Content)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("Expected path '/chat/completions', got %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Expected Authorization header, got %q", gotAuth)
	}

	model, _ := gotPayload["model"].(string)
	if model != "gpt-4o-mini" {
		t.Errorf("Expected model 'gpt-4o-mini', got %q", model)
	}

	messages, ok := gotPayload["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %v", gotPayload["messages"])
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be a chef" {
		t.Errorf("Expected leading system message, got %v", first)
	}
	second, _ := messages[1].(map[string]any)
	if second["role"] != "user" || second["content"] != "dinner ideas" {
		t.Errorf("Expected user message, got %v", second)
	}
}

func TestOpenAIProvider_Complete_NoChoices(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		payload := map[string]any{
			"id":      "chatcmpl-2",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []any{},
		}
		return newJSONResponse(t, req, http.StatusOK, payload), nil
	})

	provider := newOpenAIProviderWithHTTPClient("test-key", "https://openai.test", client)

	_, err := provider.Complete(context.Background(), ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("Expected ErrNoChoices, got %v", err)
	}
}

func TestOpenAIProvider_Complete_HTTPError(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		payload := map[string]any{
			"error": map[string]any{
				"message": "invalid api key",
				"type":    "invalid_request_error",
			},
		}
		return newJSONResponse(t, req, http.StatusUnauthorized, payload), nil
	})

	provider := newOpenAIProviderWithHTTPClient("bad-key", "https://openai.test", client)

	_, err := provider.Complete(context.Background(), ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Expected error for 401 response, got nil")
	}
}

func TestOpenRouterProvider_Complete_Headers(t *testing.T) {
	var gotReferer string
	var gotTitle string

	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotReferer = req.Header.Get("HTTP-Referer")
		gotTitle = req.Header.Get("X-Title")
		return newJSONResponse(t, req, http.StatusOK, completionPayload("ok")), nil
	})

	provider := newOpenRouterProviderWithHTTPClient("test-key", "https://chefmate.test", client)

	resp, err := provider.Complete(context.Background(), ChatRequest{
		Model:    "meta-llama/llama-3-8b",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Expected content 'ok', got %q", resp.Content)
	}
	if gotReferer != "https://chefmate.test" {
		t.Errorf("Expected HTTP-Referer header, got %q", gotReferer)
	}
	if gotTitle != "ChefMate" {
		t.Errorf("Expected X-Title header, got %q", gotTitle)
	}
}

type stubProvider struct {
	lastModel string
	resp      ChatResponse
	err       error
}

func (s *stubProvider) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	s.lastModel = req.Model
	if s.err != nil {
		return ChatResponse{}, s.err
	}
	return s.resp, nil
}

func TestRouter_Routing(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		wantRoute string
		wantModel string
	}{
		{"bare model goes to openai", "gpt-4o-mini", "openai", "gpt-4o-mini"},
		{"gemini prefix stripped", "gemini/gemini-2.0-flash", "gemini", "gemini-2.0-flash"},
		{"openrouter prefix stripped", "openrouter/meta-llama/llama-3-8b", "openrouter", "meta-llama/llama-3-8b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			oa := &stubProvider{resp: ChatResponse{Content: "a"}}
			gm := &stubProvider{resp: ChatResponse{Content: "b"}}
			or := &stubProvider{resp: ChatResponse{Content: "c"}}
			router := &Router{openai: oa, gemini: gm, openrouter: or}

			_, err := router.Complete(context.Background(), ChatRequest{
				Model:    tc.model,
				Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
			})
			if err != nil {
				t.Fatalf("Complete() error: %v", err)
			}

			byName := map[string]*stubProvider{"openai": oa, "gemini": gm, "openrouter": or}
			for name, stub := range byName {
				if name == tc.wantRoute {
					if stub.lastModel != tc.wantModel {
						t.Errorf("Expected %s to receive model %q, got %q", name, tc.wantModel, stub.lastModel)
					}
				} else if stub.lastModel != "" {
					t.Errorf("Expected %s to stay untouched, got model %q", name, stub.lastModel)
				}
			}
		})
	}
}

func TestRouter_UnconfiguredProvider(t *testing.T) {
	router := &Router{openai: &stubProvider{}}

	_, err := router.Complete(context.Background(), ChatRequest{
		Model:    "gemini/gemini-2.0-flash",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Expected error for unconfigured gemini route, got nil")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("Expected error to name the missing key, got %q", err.Error())
	}

	if err := router.CheckModel("gpt-4o-mini"); err != nil {
		t.Errorf("Expected openai route to be configured, got %v", err)
	}
	if err := router.CheckModel("openrouter/meta-llama/llama-3-8b"); err == nil {
		t.Error("Expected error for unconfigured openrouter route, got nil")
	}
}

func TestRouter_ProviderErrorPropagates(t *testing.T) {
	wantErr := errors.New("upstream exploded")
	router := &Router{openai: &stubProvider{err: wantErr}}

	_, err := router.Complete(context.Background(), ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected provider error to propagate, got %v", err)
	}
}

func TestBuildChatParams_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr string
	}{
		{
			name:    "empty model",
			req:     ChatRequest{Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}}},
			wantErr: "model is required",
		},
		{
			name:    "empty messages",
			req:     ChatRequest{Model: "gpt-4o-mini"},
			wantErr: "messages are required",
		},
		{
			name: "unknown role",
			req: ChatRequest{
				Model:    "gpt-4o-mini",
				Messages: []models.Message{{Role: "narrator", Content: "hi"}},
			},
			wantErr: "unsupported message role",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildChatParams(tc.req)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestToChatMessageParam(t *testing.T) {
	tests := []struct {
		name    string
		msg     models.Message
		wantErr bool
	}{
		{name: "system", msg: models.Message{Role: models.RoleSystem, Content: "test"}, wantErr: false},
		{name: "user", msg: models.Message{Role: models.RoleUser, Content: "test"}, wantErr: false},
		{name: "assistant", msg: models.Message{Role: models.RoleAssistant, Content: "test"}, wantErr: false},
		{name: "invalid", msg: models.Message{Role: "invalid", Content: "test"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := toChatMessageParam(tc.msg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("toChatMessageParam() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
