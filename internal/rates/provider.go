package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

// DefaultJSONPath locates the code→multiplier object in a
// {"rates": {...}} response.
const DefaultJSONPath = "$.rates"

// Provider fetches conversion multipliers relative to the base currency.
type Provider interface {
	Fetch(ctx context.Context) (map[string]float64, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (map[string]float64, error)

func (f ProviderFunc) Fetch(ctx context.Context) (map[string]float64, error) { return f(ctx) }

// HTTPProvider reads rates from an unauthenticated JSON endpoint.
type HTTPProvider struct {
	client   *http.Client
	url      string
	jsonPath string
}

// NewHTTPProvider builds a provider for url. jsonPath selects the rates
// object inside the response; empty means DefaultJSONPath.
func NewHTTPProvider(url, jsonPath string, timeout time.Duration) *HTTPProvider {
	if jsonPath == "" {
		jsonPath = DefaultJSONPath
	}
	return &HTTPProvider{
		client:   &http.Client{Timeout: timeout},
		url:      url,
		jsonPath: jsonPath,
	}
}

func (p *HTTPProvider) Fetch(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("get %s: unexpected status %s", p.url, resp.Status)
	}

	var doc any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return extractRates(doc, p.jsonPath)
}

func extractRates(doc any, path string) (map[string]float64, error) {
	val, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", path, err)
	}
	// jsonpath may wrap a single match in a list
	if list, ok := val.([]any); ok && len(list) == 1 {
		val = list[0]
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("evaluate %q: expected an object, got %T", path, val)
	}

	out := make(map[string]float64, len(obj))
	for code, v := range obj {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		out[strings.ToUpper(code)] = f
	}
	return out, nil
}
