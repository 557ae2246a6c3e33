package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CaptchaVerifier checks a human-verification token sent with a public form.
// reason is set when ok is false and the provider rejected the token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (ok bool, reason string, err error)
}

// AllowAllCaptcha accepts every token. It stands in when no reCAPTCHA
// secret is configured outside production.
type AllowAllCaptcha struct{}

func (AllowAllCaptcha) Verify(context.Context, string, string) (bool, string, error) {
	return true, "", nil
}

type RecaptchaVerifier struct {
	Secret     string
	HTTPClient *http.Client
	Endpoint   string
}

type recaptchaVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func NewRecaptchaVerifier(secret string) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		Secret:     strings.TrimSpace(secret),
		Endpoint:   "https://www.google.com/recaptcha/api/siteverify",
		HTTPClient: &http.Client{Timeout: 8 * time.Second},
	}
}

// Verify checks a reCAPTCHA v2 checkbox token against the siteverify API.
func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, string, error) {
	if v.Secret == "" {
		return false, "missing_secret", nil
	}
	tok := strings.TrimSpace(token)
	if tok == "" {
		return false, "missing_token", nil
	}

	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", tok)
	if ip := strings.TrimSpace(remoteIP); ip != "" {
		form.Set("remoteip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("recaptcha verify http %d", resp.StatusCode)
	}

	var out recaptchaVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, "", err
	}
	if out.Success {
		return true, "", nil
	}
	if len(out.ErrorCodes) > 0 {
		return false, strings.Join(out.ErrorCodes, ","), nil
	}
	return false, "verification_failed", nil
}
