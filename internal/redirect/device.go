package redirect

import (
	"net/http"
	"strings"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

var (
	tabletKeywords = []string{"tablet", "ipad"}
	mobileKeywords = []string{"mobile", "iphone", "android"}
)

// DetectDevice classifies a user agent. Tablet keywords are checked first,
// so an agent carrying both tablet and mobile keywords is a tablet.
func DetectDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if containsAny(ua, tabletKeywords) {
		return DeviceTablet
	}
	if containsAny(ua, mobileKeywords) {
		return DeviceMobile
	}
	return DeviceDesktop
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ClientIP returns the first X-Forwarded-For address, or "unknown".
func ClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return "unknown"
	}
	first, _, _ := strings.Cut(xff, ",")
	if first = strings.TrimSpace(first); first == "" {
		return "unknown"
	}
	return first
}
