package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vend-service/vend_service/pkg/logger"
)

func TestClient_Send(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	}))
	defer server.Close()

	client := NewClient(Config{BotToken: "test-token", BaseURL: server.URL}, logger.NewNop())

	err := client.Send(context.Background(), 42, "hello")
	require.NoError(t, err)
	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, int64(42), gotBody.ChatID)
	assert.Equal(t, "hello", gotBody.Text)
}

func TestClient_SendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(sendMessageResponse{OK: false, Description: "chat not found"})
	}))
	defer server.Close()

	client := NewClient(Config{BotToken: "test-token", BaseURL: server.URL}, logger.NewNop())

	err := client.Send(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestClient_SendOperatorUnconfiguredIsNoop(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(Config{BotToken: "test-token", BaseURL: server.URL}, logger.NewNop())

	require.NoError(t, client.SendOperator(context.Background(), "summary"))
	assert.False(t, called)
}

func TestClient_SendOperatorUsesConfiguredChat(t *testing.T) {
	var gotBody sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	}))
	defer server.Close()

	client := NewClient(Config{BotToken: "test-token", BaseURL: server.URL, OperatorChatID: 777}, logger.NewNop())

	require.NoError(t, client.SendOperator(context.Background(), "summary"))
	assert.Equal(t, int64(777), gotBody.ChatID)
}
