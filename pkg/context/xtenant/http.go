package xtenant

import (
	"net/http"
	"strings"
)

// HTTP Header 名称。
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderServiceID = "X-Service-ID"
)

// ExtractFromHTTPHeader 从 HTTP Header 提取 TenantKey，值会去除首尾空白。
// 不做校验，调用方按需调用 Validate。
func ExtractFromHTTPHeader(h http.Header) TenantKey {
	if h == nil {
		return TenantKey{}
	}
	return TenantKey{
		TenantID:  strings.TrimSpace(h.Get(HeaderTenantID)),
		ServiceID: strings.TrimSpace(h.Get(HeaderServiceID)),
	}
}

// InjectToHeader 把 key 写入 Header。空字段删除已有的同名 Header。
func InjectToHeader(h http.Header, key TenantKey) {
	if h == nil {
		return
	}
	setOrDel(h, HeaderTenantID, key.TenantID)
	setOrDel(h, HeaderServiceID, key.ServiceID)
}

// InjectToRequest 把 context 中的 TenantKey 写入出站请求。
// context 中没有 TenantKey 时删除请求上已有的租户 Header。
func InjectToRequest(req *http.Request) {
	if req == nil {
		return
	}
	key, _ := FromContext(req.Context())
	InjectToHeader(req.Header, key)
}

// HTTPMiddleware 从请求 Header 提取 TenantKey 并注入 context。
// requireKey 为 true 时缺少或无效的 TenantKey 返回 400。
func HTTPMiddleware(requireKey bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ExtractFromHTTPHeader(r.Header)
			if key.IsEmpty() {
				if requireKey {
					http.Error(w, ErrEmptyTenantID.Error(), http.StatusBadRequest)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if err := key.Validate(); err != nil && requireKey {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			ctx, _ := WithKey(r.Context(), key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func setOrDel(h http.Header, name, value string) {
	if value = strings.TrimSpace(value); value != "" {
		h.Set(name, value)
		return
	}
	h.Del(name)
}
