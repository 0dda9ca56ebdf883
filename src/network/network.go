package network

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"quote-observer/src/helpers"
	"quote-observer/src/interfaces"
	"quote-observer/src/logger"
	"quote-observer/src/models"

	"github.com/gorilla/websocket"
)

// MaxFrameBytes caps one inbound frame. It matches the largest record the
// journal accepts.
const MaxFrameBytes = 16 << 20

// WebsocketDialer opens the upstream quote feed connection, optionally
// through a proxy. After a failed dial it rotates to the next proxy.
type WebsocketDialer struct {
	URL          string
	Token        string
	Header       http.Header
	ProxyManager interfaces.IProxyManager
	Dialer       *websocket.Dialer
	ReadLimit    int64
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewWebsocketDialer(stream models.MStreamConfig, netCfg models.MNetworkConfig, log *logger.Logger) *WebsocketDialer {
	d := &WebsocketDialer{
		URL:          stream.URL,
		Token:        stream.Token,
		Header:       http.Header{},
		ProxyManager: helpers.NewProxyManager(netCfg.Proxies, log),
		ReadLimit:    MaxFrameBytes,
		Logger:       log,
	}
	if netCfg.UserAgent != "" {
		d.Header.Set("User-Agent", netCfg.UserAgent)
	}
	d.Dialer = d.createDialer(stream.ConnectTimeout)
	return d
}

// -----------------------------------------------------------------------------

func (d *WebsocketDialer) createDialer(handshakeTimeout time.Duration) *websocket.Dialer {
	dialer := &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  1024,
		Proxy:            http.ProxyFromEnvironment,
	}
	if d.ProxyManager.HasProxies() {
		dialer.Proxy = d.ProxyManager.ProxyFunc
	}
	return dialer
}

// -----------------------------------------------------------------------------

// Dial connects to the feed. The access token travels as a query parameter.
func (d *WebsocketDialer) Dial(ctx context.Context) (interfaces.IStreamConn, error) {
	target, err := d.endpoint()
	if err != nil {
		return nil, err
	}

	conn, resp, err := d.Dialer.DialContext(ctx, target, d.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		d.rotateProxy()
		return nil, helpers.NewConnectionError("dial "+d.redacted(), err)
	}
	conn.SetReadLimit(d.ReadLimit)
	return conn, nil
}

// -----------------------------------------------------------------------------

func (d *WebsocketDialer) endpoint() (string, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return "", helpers.NewConnectionError("invalid stream url", err)
	}
	if d.Token != "" {
		q := u.Query()
		q.Set("token", d.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redacted returns the endpoint without credentials, for logs and errors.
func (d *WebsocketDialer) redacted() string {
	u, err := url.Parse(d.URL)
	if err != nil {
		return "stream"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// -----------------------------------------------------------------------------

func (d *WebsocketDialer) rotateProxy() {
	if !d.ProxyManager.HasProxies() {
		return
	}

	d.Logger.Warning("Dial through proxy %s failed", d.ProxyManager.Current().Redacted())
	d.ProxyManager.RotateProxy()
}
