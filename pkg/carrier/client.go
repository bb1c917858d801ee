package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

const (
	feePath                    = "shipping-order/fee"
	errorBodyReadLimit   int64 = 4096
	successBodyReadLimit int64 = 1 << 20
	defaultTimeout             = 10 * time.Second
)

var (
	errBaseURLRequired = errors.New("carrier base url is required")
	errTokenRequired   = errors.New("carrier token is required")
)

// Client calls the carrier's fee-quote endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	shopID     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithShopID sets the shop identifier header sent on every request.
func WithShopID(shopID string) Option {
	return func(c *Client) {
		c.shopID = strings.TrimSpace(shopID)
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a carrier client for the given base URL and API token.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	tok := strings.TrimSpace(token)
	if tok == "" {
		return nil, errTokenRequired
	}

	client := &Client{
		baseURL:    base,
		token:      tok,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Item is one manifest entry of a fee request.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Weight   int64  `json:"weight"`
	Length   int    `json:"length"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// FeeRequest is the carrier fee-quote payload. Weights are grams.
type FeeRequest struct {
	FromDistrictID int    `json:"from_district_id"`
	FromWardCode   string `json:"from_ward_code"`
	ToDistrictID   int    `json:"to_district_id"`
	ToWardCode     string `json:"to_ward_code"`
	ServiceTypeID  int    `json:"service_type_id"`
	Weight         int64  `json:"weight"`
	Length         int    `json:"length"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Items          []Item `json:"items"`
}

// FeeResponse carries the quoted fee. Total is nil when the carrier reported
// success without a fee.
type FeeResponse struct {
	Total *int64
}

// APIError is a non-success answer from the carrier, either an HTTP error
// status or a success status with a non-200 code in the body.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("carrier error %d", e.Code)
	}
	return fmt.Sprintf("carrier error %d: %s", e.Code, e.Message)
}

type feeEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Total *int64 `json:"total"`
	} `json:"data"`
}

// Quote requests a shipping fee. Carrier rejections are returned as
// dependency errors wrapping *APIError.
func (c *Client) Quote(ctx context.Context, req FeeRequest) (*FeeResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal fee request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+feePath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build fee request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Token", c.token)
	if c.shopID != "" {
		httpReq.Header.Set("ShopId", c.shopID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute fee request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read fee response")
		}
		apiErr := &APIError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var envelope feeEnvelope
		if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
			apiErr.Message = envelope.Message
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, apiErr, "fee request failed")
	}

	var envelope feeEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, successBodyReadLimit)).Decode(&envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode fee response")
	}
	if envelope.Code != 0 && envelope.Code != http.StatusOK {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, &APIError{Code: envelope.Code, Message: envelope.Message}, "fee request rejected")
	}

	out := &FeeResponse{}
	if envelope.Data != nil {
		out.Total = envelope.Data.Total
	}
	return out, nil
}

// AsAPIError extracts a carrier rejection from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
