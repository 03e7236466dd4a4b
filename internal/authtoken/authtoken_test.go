package authtoken

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/fsd-jwt", r.URL.Path)
		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1000001", req.CID)

		json.NewEncoder(w).Encode(tokenResponse{Token: "test-jwt"})
	}))
	defer server.Close()

	client := New(server.URL, server.Client())
	token, err := client.FetchToken(context.Background(), Credentials{CID: "1000001", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "test-jwt", token)
}

func TestFetchTokenServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer server.Close()

	client := New(server.URL, server.Client())
	_, err := client.FetchToken(context.Background(), Credentials{CID: "bad", Password: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestFetchTokenEmptyTokenIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenResponse{})
	}))
	defer server.Close()

	client := New(server.URL, server.Client())
	_, err := client.FetchToken(context.Background(), Credentials{CID: "1", Password: "x"})
	require.Error(t, err)
}

func TestPollForTokenRetriesUntilApproved(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		json.NewEncoder(w).Encode(tokenResponse{Token: "polled-jwt"})
	}))
	defer server.Close()

	client := New(server.URL, server.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	token, err := client.PollForToken(ctx, "auth-token", 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "polled-jwt", token)
	assert.GreaterOrEqual(t, attempts, 3)
}

func TestPollForTokenContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := New(server.URL, server.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.PollForToken(ctx, "auth-token", 5*time.Millisecond)
	require.Error(t, err)
}
