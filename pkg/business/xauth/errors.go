package xauth

import (
	"errors"
	"fmt"
)

// =============================================================================
// 配置错误
// =============================================================================

var (
	// ErrNilConfig 表示传入的配置为 nil。
	ErrNilConfig = errors.New("xauth: nil config")

	// ErrMissingHost 表示认证服务地址未配置。
	ErrMissingHost = errors.New("xauth: missing host")

	// ErrInvalidTimeout 表示超时配置无效。
	ErrInvalidTimeout = errors.New("xauth: invalid timeout")

	// ErrInsecureHost 表示 Host 使用了非 HTTPS 协议。
	// 如需在开发/测试环境中使用 HTTP，请设置 Config.AllowInsecure = true。
	ErrInsecureHost = errors.New("xauth: host must use https:// (set AllowInsecure=true for development)")

	// ErrInvalidHost 表示 Host 格式无效。
	// Host 必须包含协议和主机名，例如 "https://auth.example.com"。
	ErrInvalidHost = errors.New("xauth: invalid host: must include scheme and host (e.g., https://auth.example.com)")

	// ErrMissingCredentials 表示客户端凭据未配置。
	ErrMissingCredentials = errors.New("xauth: missing client credentials")
)

// =============================================================================
// 解析错误
// =============================================================================

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xauth: nil context")

	// ErrRequestFailed 表示 HTTP 请求未得到响应。
	ErrRequestFailed = errors.New("xauth: request failed")

	// ErrResponseInvalid 表示响应格式无效或缺少必填字段。
	ErrResponseInvalid = errors.New("xauth: invalid response")

	// ErrResponseTooLarge 表示响应体超过最大限制（1MB），响应被拒绝而非截断。
	ErrResponseTooLarge = errors.New("xauth: response body exceeds maximum size limit")

	// ErrDecrypt 表示密码解密失败。
	ErrDecrypt = errors.New("xauth: decrypt password failed")

	// ErrInvalidKeySize 表示 AES 密钥长度不是 16、24 或 32 字节。
	ErrInvalidKeySize = errors.New("xauth: aes key must be 16, 24 or 32 bytes")
)

// =============================================================================
// HTTP 状态错误
// =============================================================================

var (
	// ErrUnauthorized 表示认证失败（401）。
	ErrUnauthorized = errors.New("xauth: unauthorized")

	// ErrForbidden 表示权限不足（403）。
	ErrForbidden = errors.New("xauth: forbidden")

	// ErrNotFound 表示资源不存在（404）。
	ErrNotFound = errors.New("xauth: not found")

	// ErrServerError 表示服务端错误（5xx）。
	ErrServerError = errors.New("xauth: server error")
)

// APIError 表示服务返回的非 2xx 响应。
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

// NewAPIError 创建 API 错误。
func NewAPIError(statusCode, code int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("xauth: api error: status=%d, code=%d, message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("xauth: api error: status=%d, code=%d", e.StatusCode, e.Code)
}

// Is 按状态码匹配 HTTP 状态哨兵错误。
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == 401:
		return target == ErrUnauthorized
	case e.StatusCode == 403:
		return target == ErrForbidden
	case e.StatusCode == 404:
		return target == ErrNotFound
	case e.StatusCode >= 500:
		return target == ErrServerError
	}
	return false
}
