package redirect

import (
	"net/url"
	"slices"
	"strings"
)

// ReservedPrefixes are first path segments owned by the application router.
var ReservedPrefixes = []string{"admin", "api", "health", "metrics", "login", "logout"}

// BioPrefix marks a bio page slug.
const BioPrefix = "@"

type RouteKind int

const (
	RoutePassthrough RouteKind = iota
	RouteBioPage
	RouteShortLink
)

func (k RouteKind) String() string {
	switch k {
	case RouteBioPage:
		return "bio_page"
	case RouteShortLink:
		return "short_link"
	default:
		return "passthrough"
	}
}

type Route struct {
	Kind RouteKind
	Slug string
	// Param is the tracking-parameter string: the segments after the slug
	// joined by "/". Only set for short links.
	Param string
}

// SplitPath splits an escaped request path into decoded, non-empty segments.
// Segments are decoded one by one so an encoded "/" stays inside its segment.
func SplitPath(escapedPath string) []string {
	raw := strings.Split(escapedPath, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		if decoded, err := url.PathUnescape(s); err == nil {
			s = decoded
		}
		segments = append(segments, s)
	}
	return segments
}

// Classify decides how a request path is served. It performs no I/O.
func Classify(segments []string) Route {
	if len(segments) == 0 {
		return Route{Kind: RoutePassthrough}
	}

	first := segments[0]
	if slices.Contains(ReservedPrefixes, first) {
		return Route{Kind: RoutePassthrough}
	}

	if bioSlug, ok := strings.CutPrefix(first, BioPrefix); ok {
		return Route{Kind: RouteBioPage, Slug: bioSlug}
	}

	return Route{
		Kind:  RouteShortLink,
		Slug:  first,
		Param: strings.Join(segments[1:], "/"),
	}
}
