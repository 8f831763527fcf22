package realtime

import (
	"net/http"
	"net/url"
)

const (
	defaultModel   = "gpt-4o-realtime-preview"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"

	// betaHeader opts into the realtime beta feature set.
	betaHeader      = "OpenAI-Beta"
	betaHeaderValue = "realtime=v1"
)

// Endpoint identifies the service URL and the credential sent with the
// handshake.
type Endpoint struct {
	baseURL string
	model   string
	apiKey  string
}

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring an Endpoint.
type Option func(*Endpoint)

// WithModel sets the model identifier appended to the URL.
func WithModel(model string) Option {
	return func(e *Endpoint) {
		if model != "" {
			e.model = model
		}
	}
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(u string) Option {
	return func(e *Endpoint) {
		if u != "" {
			e.baseURL = u
		}
	}
}

// NewEndpoint returns an Endpoint authenticated with apiKey.
func NewEndpoint(apiKey string, opts ...Option) Endpoint {
	e := Endpoint{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		apiKey:  apiKey,
	}
	for _, o := range opts {
		o(&e)
	}
	return e
}

// Model returns the configured model identifier.
func (e Endpoint) Model() string { return e.model }

// URL returns the streaming URL parameterised by the model. Query parameters
// already present on the base URL are kept. An unparsable base URL is
// returned as is and fails at dial.
func (e Endpoint) URL() string {
	u, err := url.Parse(e.baseURL)
	if err != nil {
		return e.baseURL
	}
	q := u.Query()
	q.Set("model", e.model)
	u.RawQuery = q.Encode()
	return u.String()
}

// Header returns the handshake headers: the bearer credential and the beta
// opt-in.
func (e Endpoint) Header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+e.apiKey)
	h.Set(betaHeader, betaHeaderValue)
	return h
}
