package tracking

import (
	"strings"

	"chanlinks-go/internal/common/models"
)

const other = "Other"

// ClientInfo is what the user agent says about the visitor's device
type ClientInfo struct {
	DeviceType string
	Browser    string
	OS         string
}

type uaRule struct {
	name    string
	markers []string
}

// Rules are checked in order; more specific products come first since most
// user agents also carry the markers of the engines they are built on.
var (
	browserRules = []uaRule{
		{"Edge", []string{"edg/", "edga/", "edgios/", "edge/"}},
		{"Opera", []string{"opr/", "opera", "opios/"}},
		{"Samsung Internet", []string{"samsungbrowser"}},
		{"Yandex", []string{"yabrowser"}},
		{"Firefox", []string{"firefox", "fxios"}},
		{"Chrome", []string{"chrome", "crios", "chromium"}},
		{"Safari", []string{"safari"}},
		{"Internet Explorer", []string{"msie", "trident/"}},
	}

	osRules = []uaRule{
		{"Windows", []string{"windows"}},
		{"iOS", []string{"iphone", "ipad", "ipod"}},
		{"Android", []string{"android"}},
		{"ChromeOS", []string{"cros "}},
		{"macOS", []string{"mac os x", "macintosh"}},
		{"Linux", []string{"linux", "x11"}},
	}

	tabletMarkers  = []string{"ipad", "tablet", "kindle", "silk/", "playbook"}
	mobileMarkers  = []string{"mobi", "iphone", "ipod", "android", "windows phone", "blackberry", "opera mini"}
	desktopMarkers = []string{"windows nt", "macintosh", "x11", "cros ", "linux"}
)

// ClassifyUserAgent derives device class, browser and OS family. It never fails:
// unrecognised input maps to "unknown" and "Other".
func ClassifyUserAgent(userAgent string) ClientInfo {
	ua := strings.ToLower(userAgent)
	return ClientInfo{
		DeviceType: deviceType(ua),
		Browser:    match(ua, browserRules),
		OS:         match(ua, osRules),
	}
}

func deviceType(ua string) string {
	switch {
	case ua == "":
		return models.DeviceUnknown
	case containsAny(ua, tabletMarkers),
		strings.Contains(ua, "android") && !strings.Contains(ua, "mobi"):
		return models.DeviceTablet
	case containsAny(ua, mobileMarkers):
		return models.DeviceMobile
	case containsAny(ua, desktopMarkers):
		return models.DeviceDesktop
	default:
		return models.DeviceUnknown
	}
}

func match(ua string, rules []uaRule) string {
	for _, rule := range rules {
		if containsAny(ua, rule.markers) {
			return rule.name
		}
	}
	return other
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
