package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	checkout "github.com/aprskavec/stripe-framer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestRequestSessionBody(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		captured = decodeBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"clientSecret":"cs_test_123"}`))
	}))
	defer server.Close()

	client := NewSessionClient(nil)
	result, err := client.RequestSession(context.Background(),
		checkout.BuyerContext{Email: "buyer@example.com", Locale: "es"},
		checkout.OptionA().WithEndpoint(server.URL))
	require.NoError(t, err)
	assert.Equal(t, checkout.SessionToken("cs_test_123"), result.Token)

	assert.Equal(t, "buyer@example.com", captured["email"])
	assert.Equal(t, "option_a", captured["funnel_type"])
	assert.Equal(t, "es", captured["current_locale"])
	assert.NotContains(t, captured, "customer_id")
	assert.NotContains(t, captured, "session_id")

	metadata := captured["metadata"].(map[string]interface{})
	assert.Equal(t, "", metadata["fbc"])
	assert.Equal(t, "", metadata["fbp"])
	assert.Equal(t, "will_be_set_server_side", metadata["client_ip"])
	assert.NotContains(t, metadata, "original_session_id")

	items := captured["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "captain_english_pro", items[0].(map[string]interface{})["item_id"])
}

func TestRequestSessionNullEmail(t *testing.T) {
	req := BuildSessionRequest(checkout.BuyerContext{Locale: ""}, checkout.OptionB())
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	value, ok := body["email"]
	assert.True(t, ok)
	assert.Nil(t, value)
	assert.Equal(t, "option_b", body["funnel_type"])
}

func TestRequestSessionUpsell(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = decodeBody(t, r)
		_, _ = w.Write([]byte(`{"clientSecret":"cs_upsell","customer_id":"cus_123"}`))
	}))
	defer server.Close()

	client := NewSessionClient(&SessionConfig{URL: server.URL})
	result, err := client.RequestSession(context.Background(), checkout.BuyerContext{
		Email:       "a@x.com",
		SessionRef:  "cs_prev",
		CustomerRef: "cus_123",
		ClickID:     "fb.1.1.click",
		BrowserID:   "fb.1.1.browser",
	}, checkout.Upsell())
	require.NoError(t, err)
	assert.Equal(t, "cus_123", result.CustomerID)

	assert.Equal(t, "upsell", captured["funnel_type"])
	assert.Equal(t, "cus_123", captured["customer_id"])
	assert.Equal(t, "cs_prev", captured["session_id"])
	metadata := captured["metadata"].(map[string]interface{})
	assert.Equal(t, "cs_prev", metadata["original_session_id"])
	assert.Equal(t, "fb.1.1.click", metadata["fbc"])
	assert.Equal(t, "fb.1.1.browser", metadata["fbp"])
}

func TestRequestSessionFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    checkout.ErrorKind
		details bool
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, checkout.ErrKindSessionCreationFailed, true},
		{"missing secret", http.StatusOK, `{"customer_id":"cus_1"}`, checkout.ErrKindSessionCreationFailed, true},
		{"empty secret", http.StatusOK, `{"clientSecret":""}`, checkout.ErrKindSessionCreationFailed, true},
		{"malformed body", http.StatusOK, `not json`, checkout.ErrKindSessionCreationFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewSessionClient(&SessionConfig{URL: server.URL}).
				RequestSession(context.Background(), checkout.BuyerContext{Email: "a@x.com"}, checkout.OptionA())
			require.Error(t, err)
			assert.Equal(t, tt.kind, checkout.KindOf(err))
			assert.Equal(t, checkout.MessageLoadFailed, checkout.UserMessage(err))

			var ce *checkout.CheckoutError
			require.ErrorAs(t, err, &ce)
			if tt.details {
				assert.Equal(t, tt.status, ce.Details["status"])
				assert.Equal(t, tt.body, ce.Details["body"])
			}
		})
	}
}

func TestRequestSessionNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewSessionClient(&SessionConfig{URL: url}).
		RequestSession(context.Background(), checkout.BuyerContext{}, checkout.OptionA())
	assert.Equal(t, checkout.ErrKindNetwork, checkout.KindOf(err))
}

func TestRequestSessionTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	start := time.Now()
	_, err := NewSessionClient(&SessionConfig{URL: server.URL, Timeout: 50 * time.Millisecond}).
		RequestSession(context.Background(), checkout.BuyerContext{}, checkout.OptionA())
	assert.Equal(t, checkout.ErrKindTimeout, checkout.KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRequestSessionCancelled(t *testing.T) {
	arrived := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-arrived
		cancel()
	}()

	_, err := NewSessionClient(&SessionConfig{URL: server.URL}).
		RequestSession(ctx, checkout.BuyerContext{}, checkout.OptionA())
	assert.ErrorIs(t, err, checkout.ErrCancelled)
	assert.True(t, checkout.IsCancelled(err))
}

func TestRequestSessionNoEndpoint(t *testing.T) {
	_, err := NewSessionClient(nil).
		RequestSession(context.Background(), checkout.BuyerContext{}, checkout.OptionA().WithEndpoint(""))
	assert.Equal(t, checkout.ErrKindValidation, checkout.KindOf(err))
}

func TestValidateSessionResponse(t *testing.T) {
	assert.NoError(t, ValidateSessionResponse([]byte(`{"clientSecret":"cs","customer_id":null}`)))
	assert.Error(t, ValidateSessionResponse([]byte(`{"clientSecret":42}`)))
	assert.Error(t, ValidateSessionResponse([]byte(`[]`)))
}
