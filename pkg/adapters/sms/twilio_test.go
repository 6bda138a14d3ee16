package sms_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/insurai/pkg/adapters/sms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwilio_SendSMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "tok", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+916301989290", r.PostForm.Get("To"))
		assert.Equal(t, "+15550000000", r.PostForm.Get("From"))
		assert.Equal(t, "Your Insurance Claim OTP is 123456", r.PostForm.Get("Body"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := sms.NewTwilio("AC123", "tok", "+15550000000", sms.WithBaseURL(srv.URL))
	require.NoError(t, sender.SendSMS(context.Background(), "+916301989290", "Your Insurance Claim OTP is 123456"))
}

func TestTwilio_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	sender := sms.NewTwilio("AC123", "tok", "+1", sms.WithBaseURL(srv.URL))
	err := sender.SendSMS(context.Background(), "bad", "hi")
	assert.ErrorContains(t, err, "status 400")
}
