// Copyright (c) 2025 BVK Chaitanya

package api

const (
	ProxyAddPath    = "/proxy/add"
	ProxyImportPath = "/proxy/import"
	ProxyListPath   = "/proxy/list"
	ProxyDeletePath = "/proxy/delete"
)

type ProxyAddRequest struct {
	Name     string
	Host     string
	Port     int
	Username string
	Password string
}

type ProxyAddResponse struct {
	Proxy *ProxyInfo
}

// ProxyImportRequest holds newline separated name:host:port:username:password
// lines.
type ProxyImportRequest struct {
	Text string
}

type ProxyImportResponse struct {
	Proxies []*ProxyInfo
}

type ProxyListRequest struct {
}

type ProxyListResponse struct {
	Proxies []*ProxyInfo
}

type ProxyDeleteRequest struct {
	Proxy string
}

type ProxyDeleteResponse struct {
}
