package rotation

import "strings"

// defaultScheme is prefixed to endpoints that carry no scheme of
// their own. The proxy protocol is independent of the tunneled
// traffic's scheme, so the same URI serves http and https requests.
const defaultScheme = "http"

// FormatURI derives the connectable URI for a descriptor.
//
// The function is pure, deterministic, and idempotent for a given
// descriptor: report matching by URI relies on formatting the same
// descriptor to a byte-identical string every time.
//
// Rules, applied in order:
//  1. An endpoint that already embeds credentials (user:pass@host) is
//     used verbatim apart from scheme normalization; configured
//     credentials are never inserted a second time.
//  2. Otherwise, when both username and password are set, the pair is
//     inserted immediately after the scheme separator.
//  3. Otherwise the endpoint is used as-is, prefixed with the default
//     scheme when it has none.
func FormatURI(d Descriptor) string {
	uri := ensureScheme(d.Endpoint)

	if hasEmbeddedCredentials(d.Endpoint) {
		return uri
	}

	if d.Username != "" && d.Password != "" && !strings.Contains(uri, "@") {
		scheme, rest, _ := strings.Cut(uri, "://")
		return scheme + "://" + d.Username + ":" + d.Password + "@" + rest
	}

	return uri
}

// hasEmbeddedCredentials reports whether the raw endpoint already
// carries a user:pass@ prefix: an @ is present and a colon appears
// before it.
func hasEmbeddedCredentials(endpoint string) bool {
	userinfo, _, found := strings.Cut(endpoint, "@")
	return found && strings.Contains(userinfo, ":")
}

// ensureScheme prefixes the default scheme when the endpoint lacks
// one.
func ensureScheme(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return defaultScheme + "://" + endpoint
}
