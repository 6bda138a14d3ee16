package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/insurai/pkg/adapters/llm"
	"github.com/aretw0/insurai/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])
		assert.Equal(t, 0.0, body["temperature"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  claims \n"}}]}`))
	}))
	defer srv.Close()

	c := llm.New(llm.Config{APIKey: "k", BaseURL: srv.URL + "/", Model: "gpt-4o"})
	out, err := c.Complete(context.Background(), []ports.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "claims", out)
}

func TestClient_Azure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-10-21", r.URL.Query().Get("api-version"))
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"YES | City Hospital"}}]}`))
	}))
	defer srv.Close()

	c := llm.New(llm.Config{Provider: "Azure", APIKey: "secret", BaseURL: srv.URL, Model: "gpt-4o", APIVersion: "2024-10-21"})
	out, err := c.Complete(context.Background(), []ports.Message{{Role: "user", Content: "doc"}})
	require.NoError(t, err)
	assert.Equal(t, "YES | City Hospital", out)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "status",
			status: http.StatusTooManyRequests,
			body:   `{"error":"rate limited"}`,
			check: func(t *testing.T, err error) {
				var se *llm.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusTooManyRequests, se.Code)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
			},
		},
		{
			name:   "garbage",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decode")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := llm.New(llm.Config{BaseURL: srv.URL}).Complete(context.Background(), nil)
			tt.check(t, err)
		})
	}
}
