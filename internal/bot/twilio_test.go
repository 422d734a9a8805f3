package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendabot/internal/config"
	"agendabot/internal/types"
)

func testTwilioConfig() config.TwilioConfig {
	return config.TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  types.SecretString("token-secret"),
		From:       "whatsapp:+14155238886",
		To:         "whatsapp:+34600000000",
	}
}

func TestTwilioMessenger_Send(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"From": r.PostFormValue("From"),
			"To":   r.PostFormValue("To"),
			"Body": r.PostFormValue("Body"),
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	m := NewTwilioMessenger(srv.Client(), testTwilioConfig(), testLogger())
	m.SetAPIBase(srv.URL)

	err := m.Send(context.Background(), "Buenos días Pelayo!! 😊")
	require.NoError(t, err)

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "token-secret", gotPass)
	assert.Equal(t, "whatsapp:+14155238886", gotForm["From"])
	assert.Equal(t, "whatsapp:+34600000000", gotForm["To"])
	assert.Equal(t, "Buenos días Pelayo!! 😊", gotForm["Body"])
}

func TestTwilioMessenger_Send_RejectionSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"invalid 'To' number"}`))
	}))
	defer srv.Close()

	m := NewTwilioMessenger(srv.Client(), testTwilioConfig(), testLogger())
	m.SetAPIBase(srv.URL)

	err := m.Send(context.Background(), "hola")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamMessaging, appErr.Code)
	assert.Contains(t, appErr.Message, "21211")
}
