package otp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ezeehealth/clinicportal-go/internal/appctx"
	"github.com/ezeehealth/clinicportal-go/internal/httpclient"
)

// DefaultMSG91BaseURL is the production MSG91 API origin.
const DefaultMSG91BaseURL = "https://api.msg91.com"

// maxSendAttempts bounds delivery retries per Send call.
const maxSendAttempts = 3

// MSG91Sender delivers codes over SMS via the MSG91 OTP API.
type MSG91Sender struct {
	client      *httpclient.Client
	baseURL     string
	authKey     string
	templateID  string
	countryCode string
}

// MSG91Options configures an MSG91Sender.
type MSG91Options struct {
	AuthKey    string
	TemplateID string

	// CountryCode is prefixed to bare 10-digit numbers. Defaults to "91".
	CountryCode string

	// BaseURL overrides the API origin (tests). Defaults to DefaultMSG91BaseURL.
	BaseURL string
}

// NewMSG91Sender creates an MSG91-backed sender using the safe HTTP client.
func NewMSG91Sender(client *httpclient.Client, opts MSG91Options) *MSG91Sender {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultMSG91BaseURL
	}
	countryCode := opts.CountryCode
	if countryCode == "" {
		countryCode = "91"
	}
	return &MSG91Sender{
		client:      client,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		authKey:     opts.AuthKey,
		templateID:  opts.TemplateID,
		countryCode: countryCode,
	}
}

// Send dispatches the code, retrying transient failures with capped
// exponential backoff. Client errors from the API are not retried.
func (s *MSG91Sender) Send(ctx context.Context, mobile, code string) error {
	logger := appctx.GetLogger(ctx)
	target := s.normalizeMobile(mobile)

	operation := func() (struct{}, error) {
		err := s.trySend(ctx, target, code)
		if err == nil {
			return struct{}{}, nil
		}

		if isPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}

		logger.Warn("otp dispatch attempt failed, retrying", "error", err)
		return struct{}{}, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(maxSendAttempts),
	)
	if err != nil {
		return fmt.Errorf("msg91 send: %w", err)
	}

	return nil
}

// trySend performs one API call.
func (s *MSG91Sender) trySend(ctx context.Context, mobile, code string) error {
	q := url.Values{}
	q.Set("template_id", s.templateID)
	q.Set("mobile", mobile)
	q.Set("authkey", s.authKey)
	q.Set("otp", code)
	q.Set("otp_length", strconv.Itoa(codeDigits))

	reqURL := s.baseURL + "/api/v5/otp?" + q.Encode()

	resp, err := s.client.Get(ctx, reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := s.client.ReadBody(resp)
	return &apiStatusError{status: resp.StatusCode, body: string(body)}
}

// normalizeMobile prefixes the country code to bare 10-digit numbers.
func (s *MSG91Sender) normalizeMobile(mobile string) string {
	m := strings.TrimSpace(mobile)
	m = strings.TrimPrefix(m, "+")
	if len(m) == 10 {
		return s.countryCode + m
	}
	return m
}

// apiStatusError is a non-2xx response from the MSG91 API.
type apiStatusError struct {
	status int
	body   string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("msg91 api status %d: %s", e.status, e.body)
}

// isPermanent reports whether the error should not be retried.
// 4xx responses mean the request itself is wrong; SSRF blocks never resolve.
func isPermanent(err error) bool {
	if httpclient.IsSSRFError(err) {
		return true
	}
	var apiErr *apiStatusError
	if errors.As(err, &apiErr) {
		return apiErr.status >= 400 && apiErr.status < 500
	}
	return false
}
