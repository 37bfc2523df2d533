package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tinytelemetry/podtrail/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// LogPath is appended to the API URL for batch submission.
const LogPath = "/api/v1/log"

// HTTPConfig configures the log service sink.
type HTTPConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	APIURL       string
	Env          string
	Timeout      time.Duration

	// Base is the transport client for both token and log requests.
	// Defaults to http.DefaultClient.
	Base *http.Client
}

// HTTPSink posts batches as JSON arrays to the log service, authenticating
// with an OAuth2 client-credentials token. The token is cached until expiry.
type HTTPSink struct {
	endpoint string
	env      string
	client   *http.Client
}

// NewHTTPSink creates a sink. All of TokenURL, ClientID, ClientSecret and
// APIURL are required.
func NewHTTPSink(cfg HTTPConfig) (*HTTPSink, error) {
	if cfg.TokenURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.APIURL == "" {
		return nil, fmt.Errorf("http sink: token url, client id, client secret and api url are required")
	}
	if cfg.Env == "" {
		cfg.Env = model.DefaultEnvironmentTag
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	ctx := context.Background()
	if cfg.Base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.Base)
	}
	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout

	return &HTTPSink{
		endpoint: strings.TrimRight(cfg.APIURL, "/") + LogPath,
		env:      cfg.Env,
		client:   client,
	}, nil
}

func (s *HTTPSink) Name() string { return "http" }

// Deliver posts the batch. Only 201 Created counts as success.
func (s *HTTPSink) Deliver(ctx context.Context, batch model.Batch) error {
	records := Records(batch, s.env)
	if len(records) == 0 {
		return nil
	}

	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
