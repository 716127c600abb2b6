package xauth

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/omeyang/xredis/pkg/context/xtenant"
	"github.com/omeyang/xredis/pkg/observability/xmetrics"
)

// maxResponseSize 最大响应体大小（1MB）。
const maxResponseSize = 1 << 20

// HTTPClient 封装的 JSON over HTTP 客户端。
type HTTPClient struct {
	client   *http.Client
	baseURL  string
	observer xmetrics.Observer
}

// HTTPClientConfig HTTP 客户端配置。
type HTTPClientConfig struct {
	BaseURL string

	// Timeout 请求超时时间，默认 DefaultTimeout。
	Timeout time.Duration

	TLSConfig *tls.Config

	// Client 自定义 HTTP 客户端。设置后 Timeout 与 TLSConfig 被忽略。
	Client *http.Client

	Observer xmetrics.Observer
}

// NewHTTPClient 创建 HTTP 客户端。
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig:     cfg.TLSConfig,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: cfg.Timeout,
		}
	}

	observer := cfg.Observer
	if observer == nil {
		observer = xmetrics.NoopObserver{}
	}

	return &HTTPClient{
		client:   client,
		baseURL:  cfg.BaseURL,
		observer: observer,
	}
}

// Get 发送 GET 请求。
func (c *HTTPClient) Get(ctx context.Context, path string, headers map[string]string, response any) error {
	return c.request(ctx, http.MethodGet, path, headers, nil, response)
}

// Post 发送 POST 请求，body 按 JSON 序列化。
func (c *HTTPClient) Post(ctx context.Context, path string, headers map[string]string, body, response any) error {
	return c.request(ctx, http.MethodPost, path, headers, body, response)
}

// request 发送 HTTP 请求。
// path 可以是相对路径（与 baseURL 拼接）或完整 URL。
// context 中的租户信息会写入请求头。
func (c *HTTPClient) request(
	ctx context.Context,
	method, path string,
	headers map[string]string,
	body, response any,
) (err error) {
	url := c.buildURL(path)

	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpHTTPRequest,
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String(MetricsAttrHTTPMethod, method),
			xmetrics.String(MetricsAttrHTTPPath, sanitizeURL(url)),
		},
	})
	status := 0
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Int64(MetricsAttrHTTPStatus, int64(status))}})
	}()

	bodyReader, err := buildRequestBody(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("xauth: create request failed: %w", err)
	}
	setHeaders(req, headers, body != nil)
	xtenant.InjectToRequest(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // Close 错误无法传播

	status = resp.StatusCode
	return handleResponse(resp, response)
}

// buildURL 拼接 baseURL 与 path。约定 baseURL 不含尾部斜杠，path 以斜杠开头。
func (c *HTTPClient) buildURL(path string) string {
	if isAbsoluteURL(path) {
		return path
	}
	return c.baseURL + path
}

// isAbsoluteURL 判断 path 是否为绝对 URL（scheme 大小写不敏感）。
func isAbsoluteURL(path string) bool {
	if len(path) >= 8 && strings.EqualFold(path[:8], "https://") {
		return true
	}
	return len(path) >= 7 && strings.EqualFold(path[:7], "http://")
}

// sanitizeURL 移除查询参数，避免指标高基数。
func sanitizeURL(rawURL string) string {
	if path, _, found := strings.Cut(rawURL, "?"); found {
		return path
	}
	return rawURL
}

func buildRequestBody(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("xauth: marshal request body failed: %w", err)
	}
	return bytes.NewReader(data), nil
}

func setHeaders(req *http.Request, headers map[string]string, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
}

// handleResponse 读取至多 maxResponseSize 字节的响应并解码。
func handleResponse(resp *http.Response, response any) error {
	// 多读 1 字节用于检测超限
	lr := &io.LimitedReader{R: resp.Body, N: maxResponseSize + 1}
	respBody, err := io.ReadAll(lr)
	if err != nil {
		return fmt.Errorf("xauth: read response body failed: %w", err)
	}
	if len(respBody) > maxResponseSize {
		return fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if response != nil {
		if len(respBody) == 0 {
			return fmt.Errorf("%w: empty body", ErrResponseInvalid)
		}
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("%w: %w", ErrResponseInvalid, err)
		}
	}
	return nil
}

func parseAPIError(statusCode int, respBody []byte) error {
	var apiResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	// 非 JSON 错误体使用零值，状态码仍然保留
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		apiResp.Message = strings.TrimSpace(string(respBody))
		if len(apiResp.Message) > 256 {
			apiResp.Message = apiResp.Message[:256] + "...(" + strconv.Itoa(len(respBody)) + " bytes)"
		}
	}
	return NewAPIError(statusCode, apiResp.Code, apiResp.Message)
}
