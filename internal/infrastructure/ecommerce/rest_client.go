package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erp/commercesync/internal/domain/integration"
)

// modifiedAfterLayout is the ISO-8601 form sent in the modified_after filter
const modifiedAfterLayout = "2006-01-02T15:04:05"

// errorSnippetSize bounds how much of an error body ends up in the error text
const errorSnippetSize = 256

// storeConnection is the subset of a store the client needs to reach its API
type storeConnection struct {
	BaseURL        string `validate:"required,url"`
	APIVersion     string `validate:"required"`
	ConsumerKey    string `validate:"required"`
	ConsumerSecret string `validate:"required"`
}

// RESTClient implements integration.CommercePlatform over the platform's
// paginated REST API with per-store basic-auth credentials
type RESTClient struct {
	config     RESTConfig
	httpClient *http.Client
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewRESTClient creates a REST client with the given configuration
func NewRESTClient(config RESTConfig, logger *zap.Logger) (*RESTClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		validate: validator.New(),
		logger:   logger.Named("commerce_client"),
	}, nil
}

// WithTransport replaces the HTTP transport, keeping the configured timeout
func (c *RESTClient) WithTransport(rt http.RoundTripper) *RESTClient {
	c.httpClient.Transport = rt
	return c
}

// ListOrders returns one page of orders modified after req.ModifiedAfter
func (c *RESTClient) ListOrders(ctx context.Context, store *integration.Store, req integration.PageRequest) ([]integration.ExternalOrder, error) {
	body, err := c.fetchPage(ctx, store, integration.EntityTypeOrders, req)
	if err != nil {
		return nil, err
	}

	var orders []integration.ExternalOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("%w: orders page: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return orders, nil
}

// ListProducts returns one page of products modified after req.ModifiedAfter
func (c *RESTClient) ListProducts(ctx context.Context, store *integration.Store, req integration.PageRequest) ([]integration.ExternalProduct, error) {
	body, err := c.fetchPage(ctx, store, integration.EntityTypeProducts, req)
	if err != nil {
		return nil, err
	}

	var products []integration.ExternalProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("%w: products page: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return products, nil
}

// fetchPage performs one GET against the collection endpoint of the entity type
func (c *RESTClient) fetchPage(ctx context.Context, store *integration.Store, entityType integration.EntityType, req integration.PageRequest) ([]byte, error) {
	if store == nil {
		return nil, integration.ErrInvalidStoreConnection
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	endpoint, err := c.collectionURL(store, entityType, req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ecommerce: failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(store.Credentials.ConsumerKey, store.Credentials.ConsumerSecret)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	c.logger.Debug("Fetched platform page",
		zap.String("store_id", store.ID.String()),
		zap.String("entity_type", entityType.String()),
		zap.Int("page", req.Page),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRateLimited, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: HTTP %d: %s", integration.ErrPlatformRequestFailed, resp.StatusCode, snippet(body))
	}

	return body, nil
}

// collectionURL builds {base}{prefix}/{version}/{entity}?page=..&per_page=..&modified_after=..
func (c *RESTClient) collectionURL(store *integration.Store, entityType integration.EntityType, req integration.PageRequest) (string, error) {
	version := store.APIVersion
	if version == "" {
		version = c.config.DefaultAPIVersion
	}

	conn := storeConnection{
		BaseURL:        store.BaseURL,
		APIVersion:     version,
		ConsumerKey:    store.Credentials.ConsumerKey,
		ConsumerSecret: store.Credentials.ConsumerSecret,
	}
	if err := c.validate.Struct(conn); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrInvalidStoreConnection, err)
	}

	base, err := url.Parse(strings.TrimRight(conn.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrInvalidStoreConnection, err)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/" +
		strings.Trim(c.config.APIPathPrefix, "/") + "/" +
		strings.Trim(version, "/") + "/" + entityType.String()

	q := base.Query()
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("per_page", strconv.Itoa(req.PageSize))
	q.Set("orderby", "modified")
	q.Set("order", "asc")
	q.Set("dates_are_gmt", "true")
	if !req.ModifiedAfter.IsZero() {
		q.Set("modified_after", req.ModifiedAfter.UTC().Format(modifiedAfterLayout))
	}
	base.RawQuery = q.Encode()

	return base.String(), nil
}

// snippet returns a bounded single-line prefix of an error body
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > errorSnippetSize {
		s = s[:errorSnippetSize]
	}
	return strings.ReplaceAll(s, "\n", " ")
}

// Ensure RESTClient implements CommercePlatform
var _ integration.CommercePlatform = (*RESTClient)(nil)
