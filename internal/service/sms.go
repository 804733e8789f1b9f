package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

type SMSConfig struct {
	APIURL   string
	APIToken string
	Gateway  string
	SenderID string
	RetryMax int
	Timeout  time.Duration
}

// SMSMessage is the relay payload
type SMSMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
	From string `json:"from,omitempty"`
}

// SMSResponse is the gateway's answer, passed through untouched
type SMSResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// SMSSender delivers text messages
type SMSSender interface {
	Send(ctx context.Context, msg SMSMessage) (*SMSResponse, error)
}

// SMSClient forwards messages to the bulk SMS gateway
type SMSClient struct {
	cfg    SMSConfig
	client *retryablehttp.Client
}

func NewSMSClient(cfg SMSConfig) *SMSClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = stdlog.New(io.Discard, "", stdlog.LstdFlags)
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		log.Debug().
			Str("method", req.Method).
			Str("url", req.URL.Redacted()).
			Int("attempt", attempt).
			Msg("SMS gateway request")
	}
	// Upstream answers are relayed verbatim, so a final 5xx is a response, not an error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &SMSClient{cfg: cfg, client: retryClient}
}

type gatewayPayload struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Body     string `json:"body"`
	APIToken string `json:"api_token"`
	Gateway  string `json:"gateway"`
}

func (c *SMSClient) Send(ctx context.Context, msg SMSMessage) (*SMSResponse, error) {
	from := msg.From
	if from == "" {
		from = c.cfg.SenderID
	}
	payload, err := json.Marshal(gatewayPayload{
		From:     from,
		To:       NormalizePhone(msg.To),
		Body:     msg.Body,
		APIToken: c.cfg.APIToken,
		Gateway:  c.cfg.Gateway,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling sms payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading sms gateway response: %w", err)
	}

	log.Info().Str("to", NormalizePhone(msg.To)).Int("status", resp.StatusCode).Msg("SMS relayed")

	return &SMSResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// NormalizePhone rewrites Nigerian numbers to +234 form
func NormalizePhone(to string) string {
	to = nonPhoneChars.ReplaceAllString(to, "")
	switch {
	case strings.HasPrefix(to, "+"):
		return to
	case strings.HasPrefix(to, "234"):
		return "+" + to
	case strings.HasPrefix(to, "0"):
		return "+234" + to[1:]
	}
	return to
}
