package interfaces

import (
	"net/http"
	"net/url"
)

// -----------------------------------------------------------------------------
// IProxyManager defines the contract for managing and rotating proxies.
// -----------------------------------------------------------------------------

type IProxyManager interface {

	// Current returns the selected proxy, or nil when none are configured.
	Current() *url.URL

	// RotateProxy switches to the next available proxy.
	RotateProxy()

	// HasProxies returns true if there are proxies configured.
	HasProxies() bool

	// ProxyFunc plugs the current proxy into an HTTP or websocket dialer.
	ProxyFunc(req *http.Request) (*url.URL, error)
}
