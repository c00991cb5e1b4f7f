// Package useragent classifies raw user-agent strings into browser, OS and device type.
package useragent

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device types
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// MobileScreenWidth is the client-reported width below which a device counts as mobile
const MobileScreenWidth = 768

var (
	tabletSignatures = []string{"ipad", "tablet", "kindle", "silk/", "playbook", "nexus 7", "nexus 10"}
	mobileSignatures = []string{"mobi", "iphone", "ipod", "blackberry", "opera mini", "iemobile", "windows phone", "webos"}
)

// Info is the parsed classification of a user agent
type Info struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
}

// Parse classifies ua. It never fails: anything it cannot recognise is
// reported as DeviceUnknown with empty browser and OS fields.
func Parse(ua string, screenWidth *int) Info {
	narrow := screenWidth != nil && *screenWidth > 0 && *screenWidth < MobileScreenWidth

	ua = strings.TrimSpace(ua)
	if ua == "" {
		if narrow {
			return Info{DeviceType: DeviceMobile}
		}
		return Info{DeviceType: DeviceUnknown}
	}

	parsed := useragent.New(ua)
	osInfo := parsed.OSInfo()
	recognized := !parsed.Bot() && (parsed.Platform() != "" || osInfo.Name != "")

	info := Info{DeviceType: DeviceUnknown}
	if recognized {
		info.Browser, info.BrowserVersion = parsed.Browser()
		info.OS = osInfo.Name
		info.OSVersion = osInfo.Version
	}

	lower := strings.ToLower(ua)
	switch {
	case isTablet(lower):
		info.DeviceType = DeviceTablet
	case parsed.Mobile() || containsAny(lower, mobileSignatures) || narrow:
		info.DeviceType = DeviceMobile
	case recognized:
		info.DeviceType = DeviceDesktop
	}

	return info
}

func isTablet(lower string) bool {
	if containsAny(lower, tabletSignatures) {
		return true
	}
	// Android tablets omit the "Mobile" token
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
