package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"agendabot/internal/config"
	"agendabot/internal/external"
	"agendabot/internal/types"
)

// twilioAPIBase is the Twilio REST API root, overridable for tests.
const twilioAPIBase = "https://api.twilio.com"

// TwilioMessenger delivers outbound WhatsApp messages through the Twilio
// Messages API. It implements scheduler.Messenger.
type TwilioMessenger struct {
	base       *external.BaseClient
	apiBase    string
	accountSID string
	authToken  types.SecretString
	from       string
	to         string
	logger     *slog.Logger
}

// NewTwilioMessenger creates the Twilio adapter from config.
func NewTwilioMessenger(httpClient *http.Client, cfg config.TwilioConfig, logger *slog.Logger) *TwilioMessenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioMessenger{
		base: external.NewBaseClient(
			httpClient,
			"twilio",
			external.DefaultRetryPolicy(),
			types.ErrCodeUpstreamMessaging,
		),
		apiBase:    twilioAPIBase,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		to:         cfg.To,
		logger:     logger,
	}
}

// SetAPIBase overrides the Twilio API root. Intended for tests.
func (m *TwilioMessenger) SetAPIBase(base string) {
	m.apiBase = base
}

// Send posts one message body to the configured destination number.
func (m *TwilioMessenger) Send(ctx context.Context, body string) error {
	form := url.Values{}
	form.Set("From", m.from)
	form.Set("To", m.to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", m.apiBase, m.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build message request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.accountSID, m.authToken.Unmask())

	resp, err := m.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.NewAppError(
			types.ErrCodeUpstreamMessaging,
			fmt.Sprintf("message send returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
			nil,
		)
	}

	m.logger.DebugContext(ctx, "message delivered", "bytes", len(body))
	return nil
}
