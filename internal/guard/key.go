package guard

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	pkghttp "github.com/opsdeck/authguard/pkg/http"
)

const (
	// maxKeyComponentLen bounds memory for keys built from untrusted header
	// values; user-agent strings in particular have no protocol-level cap
	maxKeyComponentLen = 256

	keySeparator = "|"

	// maxIdentityPeek caps how much of a request body is inspected when
	// extracting a login identifier for observability
	maxIdentityPeek = 8 << 10
)

// KeyParts are the discrete components of a client key
type KeyParts struct {
	IP        string
	UserAgent string
	Route     string
}

// Key builds the composite client key ip|userAgent|route. Identical inputs
// always collide to the same key; tracking is scoped per endpoint, not
// globally per client. Separator bytes in the ip and route components are
// rewritten so SplitKey stays unambiguous; a path can legally contain "|".
func Key(ip, userAgent, route string) string {
	return truncate(sanitizeComponent(ip)) + keySeparator + truncate(userAgent) + keySeparator + truncate(sanitizeComponent(route))
}

// KeyForRequest derives the client key and its parts from an inbound request
func KeyForRequest(r *http.Request) (string, KeyParts) {
	parts := KeyParts{
		IP:        truncate(sanitizeComponent(pkghttp.ExtractClientIP(r))),
		UserAgent: truncate(r.Header.Get("User-Agent")),
		Route:     truncate(sanitizeComponent(r.URL.Path)),
	}
	return parts.IP + keySeparator + parts.UserAgent + keySeparator + parts.Route, parts
}

// SplitKey explodes a composite key back into its parts. Key sanitizes the
// separator out of the IP and route components, so the user agent keeps any
// separator bytes of its own.
func SplitKey(key string) KeyParts {
	first := strings.Index(key, keySeparator)
	if first < 0 {
		return KeyParts{IP: key}
	}
	last := strings.LastIndex(key, keySeparator)
	if last == first {
		return KeyParts{IP: key[:first], UserAgent: key[first+1:]}
	}
	return KeyParts{
		IP:        key[:first],
		UserAgent: key[first+1 : last],
		Route:     key[last+1:],
	}
}

// IdentityFromRequest best-effort extracts a human-meaningful login identifier
// (email or username) from the request body, purely for admin observability.
// The body is restored so downstream handlers can still read it. Never used
// for authorization decisions.
func IdentityFromRequest(r *http.Request) string {
	if r.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIdentityPeek))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

	if len(body) == 0 {
		return ""
	}

	if id := identityFromJSON(body); id != "" {
		return id
	}
	return identityFromForm(body)
}

var identityFields = []string{"email", "username", "login"}

func identityFromJSON(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, name := range identityFields {
		if v, ok := fields[name].(string); ok && v != "" {
			return truncate(v)
		}
	}
	return ""
}

func identityFromForm(body []byte) string {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return ""
	}
	for _, name := range identityFields {
		if v := values.Get(name); v != "" {
			return truncate(v)
		}
	}
	return ""
}

func sanitizeComponent(s string) string {
	return strings.ReplaceAll(s, keySeparator, "_")
}

func truncate(s string) string {
	if len(s) > maxKeyComponentLen {
		return s[:maxKeyComponentLen]
	}
	return s
}
