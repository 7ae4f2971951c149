package claimService

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	claimPath       = "/api/v1/linkdrops/claim"
	claimERC721Path = "/api/v1/linkdrops/claim-erc721"

	defaultTimeout = 30 * time.Second
)

// IClaimService submits signed claims to the relayer that executes them through the linkdrop module
type IClaimService interface {
	Claim(ctx context.Context, req *ClaimRequest) (*ClaimResponse, error)
	ClaimERC721(ctx context.Context, req *ClaimERC721Request) (*ClaimResponse, error)
}

var _ IClaimService = (*Client)(nil)

// ClaimRequest is the body posted for ETH/ERC20 links. Amounts are decimal strings.
type ClaimRequest struct {
	WeiAmount               string `json:"weiAmount"`
	TokenAddress            string `json:"tokenAddress"`
	TokenAmount             string `json:"tokenAmount"`
	ExpirationTime          string `json:"expirationTime"`
	LinkId                  string `json:"linkId"`
	LinkdropModuleAddress   string `json:"linkdropModuleAddress"`
	LinkdropSignerSignature string `json:"linkdropSignerSignature"`
	ReceiverAddress         string `json:"receiverAddress"`
	ReceiverSignature       string `json:"receiverSignature"`
}

type ClaimERC721Request struct {
	WeiAmount               string `json:"weiAmount"`
	NFTAddress              string `json:"nftAddress"`
	TokenId                 string `json:"tokenId"`
	ExpirationTime          string `json:"expirationTime"`
	LinkId                  string `json:"linkId"`
	LinkdropModuleAddress   string `json:"linkdropModuleAddress"`
	LinkdropSignerSignature string `json:"linkdropSignerSignature"`
	ReceiverAddress         string `json:"receiverAddress"`
	ReceiverSignature       string `json:"receiverSignature"`
}

type ClaimResponse struct {
	Success      bool   `json:"success"`
	TxHash       string `json:"txHash,omitempty"`
	ErrorMessage string `json:"error,omitempty"`
}

// APIError is returned for any non-2xx reply from the claim service
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("claim service returned status %d: %s", e.StatusCode, e.Body)
}

type ClientConfig struct {
	ApiHost    string
	HttpClient *http.Client
	Logger     *zap.Logger
}

// Client is the HTTP implementation of IClaimService
type Client struct {
	apiHost    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.ApiHost == "" {
		return nil, fmt.Errorf("api host is required")
	}
	httpClient := cfg.HttpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiHost:    strings.TrimRight(cfg.ApiHost, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) Claim(ctx context.Context, req *ClaimRequest) (*ClaimResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("claim request cannot be nil")
	}
	return c.post(ctx, claimPath, req.LinkId, req)
}

func (c *Client) ClaimERC721(ctx context.Context, req *ClaimERC721Request) (*ClaimResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("claim request cannot be nil")
	}
	return c.post(ctx, claimERC721Path, req.LinkId, req)
}

func (c *Client) post(ctx context.Context, path string, linkId string, payload interface{}) (*ClaimResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claim request: %w", err)
	}

	url := c.apiHost + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create claim request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Sugar().Debugw("Submitting claim", "url", url, "linkId", linkId)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to submit claim: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read claim response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Sugar().Warnw("Claim service rejected request",
			"status_code", resp.StatusCode,
			"linkId", linkId,
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var claimResp ClaimResponse
	if err := json.Unmarshal(respBody, &claimResp); err != nil {
		return nil, fmt.Errorf("failed to decode claim response: %w", err)
	}
	c.logger.Sugar().Infow("Claim submitted",
		"linkId", linkId,
		"success", claimResp.Success,
		"txHash", claimResp.TxHash,
	)
	return &claimResp, nil
}
