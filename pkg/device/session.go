package device

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/ardhq/biosync/pkg/httpclient"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/tracing"
)

// Session is a short-lived authenticated connection to the device service.
// Sessions are created per sync run from the stored settings; the token is
// never persisted.
type Session struct {
	baseURL  string
	username string
	password string
	token    string

	http   *httpclient.Client
	logger ectologger.Logger
}

// NewSession builds an unauthenticated session from the stored settings.
func NewSession(settings models.DeviceSettings, client *httpclient.Client, logger ectologger.Logger) *Session {
	return &Session{
		baseURL:  strings.TrimRight(settings.BaseURL, "/"),
		username: settings.Username,
		password: settings.Password,
		http:     client,
		logger:   logger,
	}
}

// BaseURL returns the device service base URL without a trailing slash.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// Headers returns the request headers for authenticated calls. Connect must
// have succeeded first.
func (s *Session) Headers() map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "JWT " + s.token,
	}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Connect exchanges the stored credentials for a token. Authentication
// failure is fatal for the calling operation; the error message tells the
// operator what to check.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "device.Session.Connect")
	defer span.End()

	if s.baseURL == "" {
		return httperror.NewHTTPError(http.StatusBadGateway, "device service base URL is not configured")
	}

	body, err := json.Marshal(tokenRequest{Username: s.username, Password: s.password})
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to build auth request")
	}

	resp, err := s.http.Post(ctx, s.baseURL+"/api-token-auth/", nil, body)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Device authentication request failed")
		return httperror.NewHTTPError(http.StatusBadGateway, "device service unreachable: check the base URL and network")
	}

	if !resp.IsSuccess() {
		s.logger.WithContext(ctx).WithFields(map[string]any{"status": resp.StatusCode}).Error("Device authentication rejected")
		return httperror.NewHTTPError(http.StatusBadGateway, "device authentication failed: check the username and password")
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil || tr.Token == "" {
		return httperror.NewHTTPError(http.StatusBadGateway, "device authentication returned no token")
	}

	s.token = tr.Token
	return nil
}
