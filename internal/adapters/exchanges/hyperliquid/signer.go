package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"hypertrader/internal/adapters/exchanges"
	"hypertrader/pkg/errors"
)

// SignRequest is the L1 action a signer must sign
type SignRequest struct {
	Action         interface{} `json:"action"`
	Nonce          int64       `json:"nonce"`
	IsMainnet      bool        `json:"is_mainnet"`
	AccountAddress string      `json:"account_address"`
}

// Signature is an ECDSA signature in Hyperliquid's wire shape
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Signer produces signatures for exchange actions.
// Private keys never enter this process; signing is delegated.
type Signer interface {
	Sign(ctx context.Context, req SignRequest) (*Signature, error)
}

// RemoteSigner signs actions through an HTTP signing service.
type RemoteSigner struct {
	url  string
	http *http.Client
}

// NewRemoteSigner creates a signer posting to url
func NewRemoteSigner(url string, timeout time.Duration) *RemoteSigner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RemoteSigner{url: url, http: &http.Client{Timeout: timeout}}
}

// Sign posts the action to the signing service and decodes the signature
func (s *RemoteSigner) Sign(ctx context.Context, req SignRequest) (*Signature, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode sign request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "signer request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read signer response")
	}
	if resp.StatusCode >= 300 {
		return nil, &exchanges.APIError{Exchange: "signer", Endpoint: "/sign", Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var sig Signature
	if err := json.Unmarshal(body, &sig); err != nil {
		return nil, errors.Wrap(err, "decode signature")
	}
	if sig.R == "" || sig.S == "" {
		return nil, errors.Wrap(errors.ErrExternal, "signer returned an empty signature")
	}
	return &sig, nil
}
