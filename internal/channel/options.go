package channel

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zjrosen/sleuth/internal/config"
	"github.com/zjrosen/sleuth/internal/log"
)

// TabIDParam is the handshake query parameter carrying the session identity.
const TabIDParam = "tabId"

// Identity supplies the session identity sent with every handshake.
type Identity interface {
	Get() string
}

// Options configures a Manager.
type Options struct {
	// Transports in preference order. Only "websocket" is dialed;
	// "polling" is accepted and ignored.
	Transports []string

	HandshakeTimeout time.Duration

	// Reconnection enables automatic reconnection after an unexpected drop.
	Reconnection bool
	// ReconnectionAttempts caps attempts per outage; <= 0 means no cap.
	ReconnectionAttempts int
	ReconnectionDelay    time.Duration
	ReconnectionDelayMax time.Duration

	// Query is merged into the handshake URL.
	Query url.Values

	// Identity, if set, is read on every dial and sent as TabIDParam.
	Identity Identity

	// Dialer overrides the websocket dialer.
	Dialer *websocket.Dialer
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Defaults().Channel)
}

// OptionsFromConfig maps the channel section of the application config.
func OptionsFromConfig(cfg config.ChannelConfig) Options {
	return Options{
		Transports:           append([]string(nil), cfg.Transports...),
		HandshakeTimeout:     cfg.HandshakeTimeout,
		Reconnection:         cfg.Reconnection,
		ReconnectionAttempts: cfg.ReconnectionAttempts,
		ReconnectionDelay:    cfg.ReconnectionDelay,
		ReconnectionDelayMax: cfg.ReconnectionDelayMax,
	}
}

func (o Options) withDefaults() (Options, error) {
	if len(o.Transports) == 0 {
		o.Transports = []string{config.TransportWebSocket}
	}
	hasWebSocket := false
	for _, t := range o.Transports {
		switch strings.ToLower(t) {
		case config.TransportWebSocket:
			hasWebSocket = true
		case config.TransportPolling:
			log.Warn(log.CatConn, "polling transport is not supported, ignoring")
		default:
			return o, fmt.Errorf("unknown transport %q", t)
		}
	}
	if !hasWebSocket {
		return o, fmt.Errorf("transports must include %q", config.TransportWebSocket)
	}

	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 20 * time.Second
	}
	if o.ReconnectionDelay <= 0 {
		o.ReconnectionDelay = time.Second
	}
	if o.ReconnectionDelayMax < o.ReconnectionDelay {
		o.ReconnectionDelayMax = o.ReconnectionDelay
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: o.HandshakeTimeout,
		}
	}
	return o, nil
}

// handshakeURL returns endpoint with Query and the current identity applied.
func (o Options) handshakeURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}

	q := u.Query()
	for k, vs := range o.Query {
		q[k] = append([]string(nil), vs...)
	}
	if o.Identity != nil {
		q.Set(TabIDParam, o.Identity.Get())
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
