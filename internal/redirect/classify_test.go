package redirect

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Route
	}{
		{"/", Route{Kind: RoutePassthrough}},
		{"/api/links", Route{Kind: RoutePassthrough}},
		{"/admin", Route{Kind: RoutePassthrough}},
		{"/health", Route{Kind: RoutePassthrough}},
		{"/@shop", Route{Kind: RouteBioPage, Slug: "shop"}},
		{"/@shop/extra", Route{Kind: RouteBioPage, Slug: "shop"}},
		{"/spring", Route{Kind: RouteShortLink, Slug: "spring"}},
		{"/spring/FB", Route{Kind: RouteShortLink, Slug: "spring", Param: "FB"}},
		{"/spring/IG/Story", Route{Kind: RouteShortLink, Slug: "spring", Param: "IG/Story"}},
		{"/spring//IG///Story/", Route{Kind: RouteShortLink, Slug: "spring", Param: "IG/Story"}},
		{"/%E6%98%A5/x", Route{Kind: RouteShortLink, Slug: "春", Param: "x"}},
		{"/apis", Route{Kind: RouteShortLink, Slug: "apis"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(SplitPath(tt.path)))
		})
	}
}

func TestSplitPath_DecodesSegmentsIndependently(t *testing.T) {
	assert.Equal(t, []string{"a/b", "c"}, SplitPath("/a%2Fb/c"))
	assert.Equal(t, []string{"bad%zz"}, SplitPath("/bad%zz"))
	assert.Empty(t, SplitPath(""))
}

func TestDetectDevice(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Mobile/15E148", DeviceTablet},
		{"Mozilla/5.0 (Linux; Android 13; SM-X700) Tablet", DeviceTablet},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", DeviceMobile},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8)", DeviceMobile},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", DeviceDesktop},
		{"", DeviceDesktop},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDevice(tt.ua), tt.ua)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, "unknown", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "go.example.com", NormalizeHost("Go.Example.COM."))
	assert.Equal(t, "localhost:8080", NormalizeHost("localhost:8080"))
}
