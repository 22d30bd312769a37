package httpdispatch

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// cacheControl is a parsed Cache-Control header, grounded on
// httpcache.go's parseCacheControl.
type cacheControl map[string]string

func parseCacheControl(headers map[string][]string) cacheControl {
	cc := cacheControl{}
	for _, line := range headerValues(headers, "Cache-Control") {
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if idx := strings.IndexByte(part, '='); idx >= 0 {
				key := strings.TrimSpace(part[:idx])
				val := strings.Trim(part[idx+1:], "\" ")
				cc[strings.ToLower(key)] = val
			} else {
				cc[strings.ToLower(part)] = ""
			}
		}
	}
	return cc
}

func headerValues(headers map[string][]string, name string) []string {
	if headers == nil {
		return nil
	}
	// Headers may be keyed by exact case or canonical case; try both.
	if v, ok := headers[name]; ok {
		return v
	}
	lname := strings.ToLower(name)
	for k, v := range headers {
		if strings.ToLower(k) == lname {
			return v
		}
	}
	return nil
}

func headerFirst(headers map[string][]string, name string) string {
	vals := headerValues(headers, name)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// ResponseDirectives is the set of caching/redirect/retry instructions
// extracted from a Response's headers.
type ResponseDirectives struct {
	TTL         *time.Duration
	MaxStale    *time.Duration
	ETag        string
	Location    *url.URL
	RetryAfter  *time.Duration
	NoCache     bool
	HasTTL      bool
}

// ParseDirectives extracts TTL/max-stale/ETag/Location/Retry-After/no-cache
// from a response's headers, resolving a relative Location against the
// originating request.
func ParseDirectives(resp *Response, reqURI *url.URL) ResponseDirectives {
	var d ResponseDirectives
	cc := parseCacheControl(resp.Headers)

	if _, ok := cc["no-cache"]; ok {
		d.NoCache = true
	}
	if maxAge, ok := cc["max-age"]; ok {
		if secs, err := strconv.ParseInt(strings.TrimSpace(maxAge), 10, 64); err == nil {
			dur := time.Duration(secs) * time.Second
			d.TTL = &dur
			d.HasTTL = true
		}
	}
	if maxStale, ok := cc["max-stale"]; ok {
		if maxStale == "" {
			zero := time.Duration(0)
			d.MaxStale = &zero
		} else if secs, err := strconv.ParseInt(strings.TrimSpace(maxStale), 10, 64); err == nil {
			dur := time.Duration(secs) * time.Second
			d.MaxStale = &dur
		}
	}

	d.ETag = headerFirst(resp.Headers, "ETag")

	if loc := headerFirst(resp.Headers, "Location"); loc != "" {
		d.Location = resolveLocation(loc, reqURI)
	}

	if ra := headerFirst(resp.Headers, "Retry-After"); ra != "" {
		d.RetryAfter = parseRetryAfter(ra, time.Now())
	}

	return d
}

// resolveLocation composes a relative Location (one beginning with "/")
// into an absolute URI using the originating request's scheme, host, and
// query, per spec: location path + request query + location fragment.
// Absolute Locations are returned as-is after normalization.
func resolveLocation(location string, reqURI *url.URL) *url.URL {
	loc, err := url.Parse(location)
	if err != nil {
		return nil
	}
	if loc.IsAbs() {
		return loc
	}
	if strings.HasPrefix(location, "/") {
		composed := &url.URL{
			Scheme:   reqURI.Scheme,
			Host:     reqURI.Host,
			Path:     loc.Path,
			RawQuery: reqURI.RawQuery,
			Fragment: loc.Fragment,
		}
		return composed
	}
	return reqURI.ResolveReference(loc)
}

// parseRetryAfter accepts either a numeric seconds value or an RFC-1123
// HTTP-date. For a date, the delay is (date - now); negative delays mean
// "retry immediately" and are returned as-is (the caller clamps to zero).
func parseRetryAfter(value string, now time.Time) *time.Duration {
	value = strings.TrimSpace(value)
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		dur := time.Duration(secs) * time.Second
		return &dur
	}
	if when, err := time.Parse(time.RFC1123, value); err == nil {
		dur := when.Sub(now)
		return &dur
	}
	return nil
}
