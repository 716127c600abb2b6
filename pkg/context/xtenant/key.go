package xtenant

import (
	"fmt"
	"strings"
	"unicode"
)

// keySeparator 是 TenantKey 规范字符串中租户与服务之间的分隔符。
const keySeparator = "/"

// TenantKey 是按租户解析客户端时的键。
type TenantKey struct {
	// TenantID 租户 ID
	TenantID string
	// ServiceID 请求方服务 ID
	ServiceID string
}

// NewKey 创建去除首尾空白并通过校验的 TenantKey。
func NewKey(tenantID, serviceID string) (TenantKey, error) {
	k := TenantKey{
		TenantID:  strings.TrimSpace(tenantID),
		ServiceID: strings.TrimSpace(serviceID),
	}
	if err := k.Validate(); err != nil {
		return TenantKey{}, err
	}
	return k, nil
}

// IsEmpty 判断两个字段是否都为空。
func (k TenantKey) IsEmpty() bool {
	return k.TenantID == "" && k.ServiceID == ""
}

// Validate 验证必填字段。纯空白值视为空值。
func (k TenantKey) Validate() error {
	if strings.TrimSpace(k.TenantID) == "" {
		return ErrEmptyTenantID
	}
	if strings.TrimSpace(k.ServiceID) == "" {
		return ErrEmptyServiceID
	}
	for _, s := range []string{k.TenantID, k.ServiceID} {
		if strings.Contains(s, keySeparator) || strings.ContainsFunc(s, unicode.IsControl) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
	}
	return nil
}

// String 返回规范字符串 "<tenant>/<service>"，用作注册表键。
func (k TenantKey) String() string {
	return k.TenantID + keySeparator + k.ServiceID
}

// ParseKey 解析 String 的输出。
func ParseKey(s string) (TenantKey, error) {
	tenant, service, ok := strings.Cut(s, keySeparator)
	if !ok {
		return TenantKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return NewKey(tenant, service)
}
