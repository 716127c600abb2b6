package xauth

// 观测相关常量。
const (
	MetricsComponent = "xauth"

	MetricsOpResolve      = "Resolve"
	MetricsOpAuthenticate = "Authenticate"
	MetricsOpFetchConfig  = "FetchTopology"
	MetricsOpHTTPRequest  = "HTTP"

	MetricsAttrTenantID   = "tenant_id"
	MetricsAttrServiceID  = "service_id"
	MetricsAttrHTTPPath   = "http.path"
	MetricsAttrHTTPMethod = "http.method"
	MetricsAttrHTTPStatus = "http.status"
)
