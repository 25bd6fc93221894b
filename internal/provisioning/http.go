package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
)

// ActorHeader carries the editing user's email to the backend.
const ActorHeader = "X-On-Behalf-Of"

// HTTPConfig configures an HTTPClient. Either APIKey or the client
// credentials triple authenticates the editor to the backend.
type HTTPConfig struct {
	BaseURL      string
	APIKey       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// HTTPClient talks to a remote backend over its JSON API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     logger.Logger
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig, log logger.Logger) (*HTTPClient, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.ClientID != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = cc.Client(ctx)
		client.Timeout = cfg.Timeout
		// The oauth2 transport sets the Authorization header.
		cfg.APIKey = ""
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		log:     log.With(logger.String("component", "provisioning-http")),
	}, nil
}

// LoadCircuit fetches one of the workgroup's circuits by id.
func (c *HTTPClient) LoadCircuit(ctx context.Context, workgroupID, id int) (*domain.Circuit, error) {
	var circuit domain.Circuit
	path := "/api/v1/workgroups/" + strconv.Itoa(workgroupID) + "/circuits/" + strconv.Itoa(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &circuit); err != nil {
		return nil, err
	}
	return &circuit, nil
}

// SaveCircuit submits a create or update.
func (c *HTTPClient) SaveCircuit(ctx context.Context, req *domain.SaveCircuitRequest) (*domain.SaveCircuitResponse, error) {
	var resp domain.SaveCircuitResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/circuits", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListEntities fetches an entity node with its children.
func (c *HTTPClient) ListEntities(ctx context.Context, workgroupID int, parentID *int) (*domain.Entity, error) {
	path := "/api/v1/workgroups/" + strconv.Itoa(workgroupID) + "/entities"
	if parentID != nil {
		path += "?parent_id=" + strconv.Itoa(*parentID)
	}
	var entity domain.Entity
	if err := c.do(ctx, http.MethodGet, path, nil, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// ListConnections fetches the workgroup's existing circuits.
func (c *HTTPClient) ListConnections(ctx context.Context, workgroupID int) ([]domain.Connection, error) {
	var conns []domain.Connection
	path := "/api/v1/workgroups/" + strconv.Itoa(workgroupID) + "/connections"
	if err := c.do(ctx, http.MethodGet, path, nil, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// ListUsers fetches all users.
func (c *HTTPClient) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if actor := Actor(ctx); actor != "" {
		req.Header.Set(ActorHeader, actor)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("backend request failed",
			logger.String("method", method),
			logger.String("path", path),
			logger.Err(err),
		)
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	c.log.Debug("backend request",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", time.Since(start)),
	)

	if err := statusError(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", domain.ErrTransport, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}

	message := http.StatusText(resp.StatusCode)
	var apiErr domain.APIError
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr); err == nil && apiErr.Message != "" {
		message = apiErr.Message
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, message)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, message)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: backend returned %d: %s", domain.ErrTransport, resp.StatusCode, message)
	default:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, message)
	}
}

// IsTransport reports whether err means the backend could not be reached.
func IsTransport(err error) bool {
	return errors.Is(err, domain.ErrTransport)
}
