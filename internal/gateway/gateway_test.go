package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pediamatch/intake-service/internal/config"
)

func TestTwilioClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15145550000", r.PostForm.Get("From"))
		assert.Equal(t, "+15145550100", r.PostForm.Get("To"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"sid": "SM42", "status": "queued"}`)
	}))
	defer srv.Close()

	client := NewTwilioClient(config.TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15145550000",
		BaseURL:    srv.URL + "/",
	}, srv.Client())

	sid, err := client.Send(context.Background(), "+15145550100", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SM42", sid)
}

func TestTwilioClient_SendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code": 20003, "message": "Authenticate"}`)
	}))
	defer srv.Close()

	client := NewTwilioClient(config.TwilioConfig{
		AccountSID: "AC123", AuthToken: "bad", FromNumber: "+1", BaseURL: srv.URL,
	}, srv.Client())

	_, err := client.Send(context.Background(), "+15145550100", "hello")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "twilio", perr.Provider)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Contains(t, perr.Error(), "401")
}

func TestTwilioClient_MissingCredentials(t *testing.T) {
	client := NewTwilioClient(config.TwilioConfig{BaseURL: "http://unused"}, nil)
	_, err := client.Send(context.Background(), "+1", "x")

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "credentials not configured")
}

func TestSendGridClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.key", r.Header.Get("Authorization"))

		var payload struct {
			From struct {
				Email string `json:"email"`
			} `json:"from"`
			Subject          string `json:"subject"`
			Personalizations []struct {
				To []struct {
					Email string `json:"email"`
				} `json:"to"`
			} `json:"personalizations"`
			Content []struct {
				Type  string `json:"type"`
				Value string `json:"value"`
			} `json:"content"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "noreply@example.com", payload.From.Email)
		assert.Equal(t, "Appointment Request", payload.Subject)
		require.Len(t, payload.Personalizations, 1)
		assert.Equal(t, "hospital@example.com", payload.Personalizations[0].To[0].Email)
		require.Len(t, payload.Content, 1)
		assert.Equal(t, "text/plain", payload.Content[0].Type)
		assert.Equal(t, "body text", payload.Content[0].Value)

		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewSendGridClient(config.SendGridConfig{APIKey: "SG.key", BaseURL: srv.URL}, "Hospital", "noreply@example.com")
	id, err := client.Send(context.Background(), "hospital@example.com", "Appointment Request", "body text")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
}

func TestSendGridClient_SendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"errors":[{"message":"forbidden"}]}`)
	}))
	defer srv.Close()

	client := NewSendGridClient(config.SendGridConfig{APIKey: "SG.key", BaseURL: srv.URL}, "", "noreply@example.com")
	_, err := client.Send(context.Background(), "hospital@example.com", "s", "b")

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "sendgrid", perr.Provider)
}

func TestSendGridClient_MissingKey(t *testing.T) {
	client := NewSendGridClient(config.SendGridConfig{}, "", "noreply@example.com")
	_, err := client.Send(context.Background(), "x@example.com", "s", "b")
	assert.Error(t, err)
}
