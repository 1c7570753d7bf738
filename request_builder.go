package flagrelay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Operation describes one logical API call. Operations are value objects:
// build one with a constructor and hand it to the client, which turns it
// into a single HTTP exchange.
type Operation struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte

	// err holds a constructor-time failure (e.g. a body that could not be
	// encoded) and surfaces through the request callback as a construction
	// error.
	err error
}

// GetFlags fetches the environment's full flag set.
func GetFlags() Operation {
	return Operation{Method: http.MethodGet, Path: "flags/"}
}

// GetIdentity fetches flags and traits scoped to one identity.
func GetIdentity(identifier string) Operation {
	q := url.Values{}
	q.Set("identifier", identifier)
	return Operation{Method: http.MethodGet, Path: "identities/", Query: q}
}

// SetTraits updates an identity's traits and returns its flags.
func SetTraits(identifier string, traits []Trait) Operation {
	payload := struct {
		Identifier string  `json:"identifier"`
		Traits     []Trait `json:"traits"`
	}{Identifier: identifier, Traits: traits}

	body, err := json.Marshal(payload)
	return Operation{
		Method: http.MethodPost,
		Path:   "identities/",
		Body:   body,
		err:    err,
	}
}

// NewOperation builds a custom operation against a relative API path.
func NewOperation(method, path string) Operation {
	return Operation{Method: method, Path: path}
}

// RequestBuilder turns a base URL, a credential and a logical operation into
// a fully formed HTTP request. The client merges additional headers and sets
// the per-request cache directive on the returned request before dispatch.
type RequestBuilder interface {
	Build(baseURL, credential string, op Operation) (*http.Request, error)
}

// defaultRequestBuilder targets the flag API's conventions: the credential
// travels in the X-Environment-Key header and bodies are JSON.
type defaultRequestBuilder struct{}

func (defaultRequestBuilder) Build(baseURL, credential string, op Operation) (*http.Request, error) {
	if op.err != nil {
		return nil, op.err
	}
	if op.Method == "" {
		return nil, fmt.Errorf("operation method is empty")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base URL %q is not absolute", baseURL)
	}

	ref := &url.URL{Path: op.Path}
	target := base.ResolveReference(ref)
	if !strings.HasSuffix(base.Path, "/") && op.Path != "" {
		// Keep the base path as a prefix rather than replacing its last
		// segment, which is what ResolveReference does for bare paths.
		joined := *base
		joined.Path = base.Path + "/" + strings.TrimPrefix(op.Path, "/")
		target = &joined
	}
	if len(op.Query) > 0 {
		target.RawQuery = op.Query.Encode()
	}

	var body *bytes.Reader
	if op.Body != nil {
		body = bytes.NewReader(op.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(op.Method, target.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-Environment-Key", credential)
	req.Header.Set("Accept", "application/json")
	if op.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
