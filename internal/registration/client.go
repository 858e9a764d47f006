package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"interviewmic/internal/domain"
)

const submitPath = "/submit"

// Config controls the registration endpoint.
type Config struct {
	BaseURL string
	// Timeout bounds one registration call; zero waits indefinitely.
	Timeout time.Duration
}

// Client registers candidates with the interview backend.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "http://127.0.0.1:5000"
	}

	httpClient := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}

	return &Client{http: httpClient, logger: logger.Named("registration")}
}

type submitRequest struct {
	LinkedIn   string `json:"linkedin"`
	ResumeName string `json:"resumeName"`
}

type submitResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Profile *profilePayload `json:"profile"`
}

type profilePayload struct {
	Name        string            `json:"name"`
	Bio         string            `json:"bio"`
	Experiences []json.RawMessage `json:"experiences"`
}

// Register sends the profile to the backend and classifies the outcome.
// It performs exactly one request and never retries.
func (c *Client) Register(ctx context.Context, profile domain.CandidateProfile) domain.RegistrationResult {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(submitRequest{LinkedIn: profile.LinkedInURL, ResumeName: profile.ResumeName}).
		Post(submitPath)
	if err != nil {
		reason := fmt.Sprintf("network unreachable: %v", err)
		if errors.Is(err, context.Canceled) {
			reason = "registration cancelled"
		}
		c.logger.Warn("registration request failed", zap.Error(err))
		return domain.RegistrationFailed(domain.ErrorCodeNetworkFailure, reason)
	}

	body, parseErr := decodeResponse(resp.Body())

	if !resp.IsSuccess() {
		reason := fmt.Sprintf("server rejected registration with status %d", resp.StatusCode())
		if parseErr == nil && strings.TrimSpace(body.Message) != "" {
			reason = fmt.Sprintf("%s: %s", reason, strings.TrimSpace(body.Message))
		}
		c.logger.Warn("registration rejected", zap.Int("status", resp.StatusCode()))
		return domain.RegistrationFailed(domain.ErrorCodeServerRejected, reason)
	}

	if parseErr != nil {
		c.logger.Warn("registration response malformed", zap.Error(parseErr))
		return domain.RegistrationFailed(domain.ErrorCodeMalformedResponse, parseErr.Error())
	}

	switch strings.ToLower(strings.TrimSpace(body.Status)) {
	case "success":
		c.logger.Info("candidate registered", zap.String("resume_name", profile.ResumeName))
		return domain.RegistrationSucceeded(body.Message, body.Profile.summary())
	case "error":
		reason := strings.TrimSpace(body.Message)
		if reason == "" {
			reason = "server rejected registration"
		}
		c.logger.Warn("registration rejected", zap.String("reason", reason))
		return domain.RegistrationFailed(domain.ErrorCodeServerRejected, reason)
	default:
		c.logger.Warn("registration response has unknown status", zap.String("status", body.Status))
		return domain.RegistrationFailed(domain.ErrorCodeMalformedResponse, fmt.Sprintf("unknown response status %q", body.Status))
	}
}

func decodeResponse(payload []byte) (submitResponse, error) {
	var body submitResponse
	if len(payload) == 0 {
		return body, errors.New("empty response body")
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return body, fmt.Errorf("invalid response body: %w", err)
	}
	return body, nil
}

func (p *profilePayload) summary() *domain.CandidateSummary {
	if p == nil {
		return nil
	}
	return &domain.CandidateSummary{
		Name:        p.Name,
		Bio:         p.Bio,
		Experiences: len(p.Experiences),
	}
}
