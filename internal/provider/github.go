package provider

import (
	"net/http"
)

// githubTransport adds the headers GitHub Models expects on every request.
// The bearer token itself is set by the OpenAI client.
type githubTransport struct {
	base       http.RoundTripper
	apiVersion string
}

func newGitHubTransport(base http.RoundTripper, apiVersion string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &githubTransport{base: base, apiVersion: apiVersion}
}

// RoundTrip implements http.RoundTripper. The request is cloned so the
// caller's headers are never mutated.
func (t *githubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Accept", "application/vnd.github+json")
	r.Header.Set("X-GitHub-Api-Version", t.apiVersion)
	return t.base.RoundTrip(r)
}
