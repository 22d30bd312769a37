package httpdispatch

import (
	"encoding/base64"
	"hash/fnv"
	"net/url"
	"sort"
	"strings"
)

// fingerprint derives a stable 32-bit identity from a request's method-
// independent URI identity and body. Equal ids imply equal identity tuples
// (scheme, host, path, sorted query parameters, fragment, base64(body),
// port); query parameter order is immaterial and redirects never change a
// request's id, since fingerprint is only ever computed once, against the
// original (tail) endpoint.
func fingerprint(u *url.URL, body []byte) uint32 {
	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(u.Host))
	b.WriteByte('|')
	b.WriteString(u.EscapedPath())
	b.WriteByte('|')

	keys := make([]string, 0, len(u.Query()))
	query := u.Query()
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := append([]string(nil), query[k]...)
		sort.Strings(vals)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(vals, ","))
		b.WriteByte('&')
	}
	b.WriteByte('|')
	b.WriteString(u.Fragment)

	if len(body) > 0 {
		b.WriteByte('|')
		b.WriteString(base64.StdEncoding.EncodeToString(body))
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(b.String()))
	sum := h.Sum32()

	// Fold the port into the hash so a request with no identity text at all
	// (no scheme/host/path/query/fragment/body) still yields a non-zero id.
	port := u.Port()
	if port != "" {
		ph := fnv.New32a()
		_, _ = ph.Write([]byte(port))
		sum ^= ph.Sum32()
	}
	return sum
}
