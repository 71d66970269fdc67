package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// ClientInfo is the parsed form of a User-Agent header, attached to request logs.
type ClientInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, bot
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	BrowserVer string `json:"browser_ver"`
	IsBot      bool   `json:"is_bot"`
}

var tabletMarkers = []string{"ipad", "tablet", "kindle", "playbook", "nexus 7", "nexus 9", "nexus 10", "sm-t"}

// ParseUserAgent extracts device information from a User-Agent string
func ParseUserAgent(userAgent string) ClientInfo {
	if strings.TrimSpace(userAgent) == "" {
		return ClientInfo{DeviceType: "unknown", OS: "Unknown", Browser: "Unknown"}
	}

	parser := ua.New(userAgent)
	name, version := parser.Browser()

	info := ClientInfo{
		OS:         parser.OS(),
		Browser:    name,
		BrowserVer: version,
		IsBot:      parser.Bot(),
	}
	if info.OS == "" {
		info.OS = "Unknown"
	}
	if info.Browser == "" {
		info.Browser = "Unknown"
	}

	switch {
	case info.IsBot:
		info.DeviceType = "bot"
	case isTablet(userAgent):
		info.DeviceType = "tablet"
	case parser.Mobile():
		info.DeviceType = "mobile"
	default:
		info.DeviceType = "desktop"
	}
	return info
}

func isTablet(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, marker := range tabletMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
