package mail_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/insurai/pkg/adapters/mail"
	"github.com/aretw0/insurai/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResend_SendEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_123", r.Header.Get("Authorization"))

		var body struct {
			From        string   `json:"from"`
			To          []string `json:"to"`
			Subject     string   `json:"subject"`
			Attachments []struct {
				Filename string `json:"filename"`
				Content  string `json:"content"`
			} `json:"attachments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "InsurAI <policies@insurai.test>", body.From)
		assert.Equal(t, []string{"asha@example.com"}, body.To)
		assert.Equal(t, "Your Standard Policy - All Set!", body.Subject)
		require.Len(t, body.Attachments, 1)
		assert.Equal(t, "policy.txt", body.Attachments[0].Filename)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("policy")), body.Attachments[0].Content)

		_, _ = w.Write([]byte(`{"id":"em_1"}`))
	}))
	defer srv.Close()

	m := mail.NewResend("re_123", "InsurAI <policies@insurai.test>", mail.WithBaseURL(srv.URL))
	err := m.SendEmail(context.Background(), ports.Email{
		To:          "asha@example.com",
		Subject:     "Your Standard Policy - All Set!",
		Text:        "Hi Asha",
		Attachments: []ports.Attachment{{Filename: "policy.txt", Content: []byte("policy")}},
	})
	require.NoError(t, err)
}

func TestResend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	err := mail.NewResend("bad", "x@y", mail.WithBaseURL(srv.URL)).SendEmail(context.Background(), ports.Email{To: "a@b"})
	assert.ErrorContains(t, err, "status 403")
}
