package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				APIKey: "test-key",
			},
			wantErr: false,
		},
		{
			name: "missing API key",
			config: Config{
				APIKey: "",
			},
			wantErr: true,
		},
		{
			name: "custom model and settings",
			config: Config{
				APIKey:    "test-key",
				Model:     "gpt-4o",
				MaxTokens: 200,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newOpenAIClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, client)
			}
		})
	}
}

func TestOpenAIClient_Defaults(t *testing.T) {
	client, err := newOpenAIClient(Config{APIKey: "k"})
	require.NoError(t, err)

	c, ok := client.(*openAIClient)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", c.Model())
	assert.Equal(t, defaultMaxTokens, c.maxTokens)
	assert.Zero(t, c.temperature)
	assert.Equal(t, openAIBaseURL, c.baseURL)
}

func openAIReply(content string) openAIResponse {
	var resp openAIResponse
	resp.Choices = make([]struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	}, 1)
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = content
	return resp
}

func TestOpenAIClient_Analyze(t *testing.T) {
	tests := []struct {
		name       string
		reply      any
		want       string
		statusCode int
		wantErr    bool
	}{
		{
			name:       "successful completion",
			reply:      openAIReply("  {\"security_score\": 90}  "),
			statusCode: http.StatusOK,
			want:       `{"security_score": 90}`,
		},
		{
			name:       "api error status",
			reply:      map[string]string{"error": "rate limited"},
			statusCode: http.StatusTooManyRequests,
			wantErr:    true,
		},
		{
			name:       "no choices",
			reply:      openAIResponse{},
			statusCode: http.StatusOK,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &captured)

				w.WriteHeader(tt.statusCode)
				_ = json.NewEncoder(w).Encode(tt.reply)
			}))
			defer server.Close()

			client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL, MaxTokens: 120})
			require.NoError(t, err)

			got, err := client.Analyze(context.Background(), "user prompt", "You return strict JSON.")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			assert.Equal(t, "gpt-4o-mini", captured["model"])
			assert.InDelta(t, 0.0, captured["temperature"], 1e-9)
			assert.InDelta(t, 120.0, captured["max_tokens"], 1e-9)
			messages, ok := captured["messages"].([]any)
			require.True(t, ok)
			require.Len(t, messages, 2)
			system, ok := messages[0].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "You return strict JSON.", system["content"])
		})
	}
}

func TestOpenAIClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client, err := newOpenAIClient(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Analyze(context.Background(), "p", "s")
	require.Error(t, err)
}
