package external

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Credential headers sent to the proxy. Browsers cannot set a raw Cookie header,
// so the proxy renames these back before calling sundhed.dk.
const (
	HeaderCookie           = "X-Sundhed-Cookie"
	HeaderXSRFToken        = "X-Sundhed-XSRF-Token"
	HeaderConversationUUID = "X-Sundhed-Conversation-UUID"
)

// CredentialHeaders lists the vendor header names in display order.
var CredentialHeaders = []string{HeaderCookie, HeaderXSRFToken, HeaderConversationUUID}

// ProxyHeaderNames maps each vendor header to the name the proxy forwards upstream.
var ProxyHeaderNames = map[string]string{
	HeaderCookie:           "cookie",
	HeaderXSRFToken:        "x-xsrf-token",
	HeaderConversationUUID: "conversation-uuid",
}

// LegacyHeaderNames maps header names saved by older versions to the vendor names.
var LegacyHeaderNames = map[string]string{
	"Cookie":            HeaderCookie,
	"X-XSRF-Token":      HeaderXSRFToken,
	"Conversation-UUID": HeaderConversationUUID,
}

// NaturalHeaders renames vendor headers the way the proxy does. Unknown headers pass through.
func NaturalHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		out[naturalName(name)] = value
	}
	return out
}

func naturalName(name string) string {
	for vendor, natural := range ProxyHeaderNames {
		if strings.EqualFold(vendor, name) {
			return natural
		}
	}
	return name
}

// MigrateHeaders renames legacy header names and drops empty values. Values are
// trimmed. The second return is true when anything changed.
func MigrateHeaders(headers map[string]string) (map[string]string, bool) {
	out := make(map[string]string, len(headers))
	changed := false
	for name, value := range headers {
		if renamed, ok := LegacyHeaderNames[name]; ok {
			name = renamed
			changed = true
		}
		trimmed := strings.TrimSpace(value)
		if trimmed != value {
			changed = true
		}
		if trimmed == "" {
			changed = true
			continue
		}
		out[name] = trimmed
	}
	return out, changed
}

// CredentialsFromRequest picks the vendor credential headers off an inbound request.
func CredentialsFromRequest(h http.Header) map[string]string {
	out := map[string]string{}
	for _, name := range CredentialHeaders {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			out[name] = v
		}
	}
	return out
}

type credentialsKey struct{}

// WithCredentials attaches per-request credential headers to ctx. They override
// the client's saved headers on every upstream call made with ctx.
func WithCredentials(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return context.WithValue(ctx, credentialsKey{}, headers)
}

// CredentialsFrom returns the credential headers attached with WithCredentials.
func CredentialsFrom(ctx context.Context) map[string]string {
	h, _ := ctx.Value(credentialsKey{}).(map[string]string)
	return h
}

// mergeHeaders applies layers in order; later layers win.
func mergeHeaders(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// CredentialFingerprint hashes a header set. Cached responses and snapshots are keyed
// by it so one session never sees another's data.
func CredentialFingerprint(headers map[string]string) string {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, k := range names {
		fmt.Fprintf(h, "%s=%s\n", strings.ToLower(k), headers[k])
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}
