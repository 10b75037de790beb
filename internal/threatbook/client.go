package threatbook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

const (
	DefaultEndpoint = "https://api.threatbook.cn/v3/scene/ip_reputation"

	LangZH = "zh"
	LangEN = "en"

	maxBodyLength = 4 << 20
)

// ErrMalformedBody marks a response that arrived but could not be decoded.
// Callers treat it as a per-IP failure rather than a transport failure.
var ErrMalformedBody = errors.New("threatbook: malformed response body")

type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

type Options struct {
	Endpoint string
	Proxy    string
	Timeout  time.Duration
}

func NewClient(opts Options) (*Client, error) {
	transport, err := NewTransport(opts.Proxy)
	if err != nil {
		return nil, err
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Client{
		Endpoint: endpoint,
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
	}, nil
}

// NormalizeLang maps user input onto the two languages the API accepts.
func NormalizeLang(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case LangEN, "english", "英文":
		return LangEN
	default:
		return LangZH
	}
}

// Lookup issues one reputation request for ip. A non-nil error other than
// ErrMalformedBody means the request itself failed.
func (c *Client) Lookup(ctx context.Context, apiKey, ip, lang string) (*domain.LookupResponse, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("threatbook: parse endpoint: %w", err)
	}

	query := reqURL.Query()
	query.Set("apikey", apiKey)
	query.Set("resource", ip)
	query.Set("lang", NormalizeLang(lang))
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("threatbook: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("threatbook: request %s: %w", ip, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLength))
	if err != nil {
		return nil, fmt.Errorf("threatbook: read body: %w", err)
	}

	log.Debug("Reputation lookup", "ip", ip, "status", resp.StatusCode, "bytes", len(body))

	return DecodeResponse(body)
}

type envelope struct {
	ResponseCode int             `json:"response_code"`
	VerboseMsg   string          `json:"verbose_msg"`
	Data         json.RawMessage `json:"data"`
}

// DecodeResponse parses a response body. The raw body is kept on the result.
// The response code is read before data, so a limit or error reply whose data
// has an unexpected shape still reports its code. Only a successful reply with
// unusable data is malformed.
func DecodeResponse(body []byte) (*domain.LookupResponse, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	decoded := domain.LookupResponse{
		ResponseCode: env.ResponseCode,
		VerboseMsg:   env.VerboseMsg,
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &decoded.Data); err != nil {
			if env.ResponseCode == domain.ResponseCodeOK {
				return nil, fmt.Errorf("%w: data: %v", ErrMalformedBody, err)
			}
			decoded.Data = nil
		}
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, body); err == nil {
		decoded.Raw = compacted.Bytes()
	} else {
		decoded.Raw = append(json.RawMessage(nil), body...)
	}

	return &decoded, nil
}
