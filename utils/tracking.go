package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// TrackingToken derives the token embedded in open/click URLs. The
// token is stable per message so the handlers can verify it without a
// lookup table.
func TrackingToken(secret, messageID string) string {
	hash := sha256.Sum256([]byte(secret + ":" + messageID))
	return base64.URLEncoding.EncodeToString(hash[:])[:20]
}

// OpenPixelURL generates a tracking pixel URL for email opens
func OpenPixelURL(baseURL, secret, messageID string) string {
	return fmt.Sprintf("%s/track/open/%s/%s", baseURL, url.PathEscape(messageID), TrackingToken(secret, messageID))
}

// ClickTrackURL generates a tracked URL for links
func ClickTrackURL(baseURL, secret, messageID, originalURL string) string {
	encodedURL := url.QueryEscape(originalURL)
	return fmt.Sprintf("%s/track/click/%s/%s?url=%s", baseURL, url.PathEscape(messageID), TrackingToken(secret, messageID), encodedURL)
}

// InjectTracking rewrites links for click tracking and appends an open
// pixel to the HTML body.
func InjectTracking(htmlContent, baseURL, secret, messageID string) string {
	pixelURL := OpenPixelURL(baseURL, secret, messageID)
	trackingPixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`, pixelURL)

	modifiedHTML := injectClickTracking(htmlContent, baseURL, secret, messageID)

	return modifiedHTML + trackingPixel
}

func injectClickTracking(html, baseURL, secret, messageID string) string {
	// Simplified rewrite; an HTML parser would be more robust
	startTag := "<a href=\""
	endTag := "\""
	offset := 0

	for {
		startIdx := strings.Index(html[offset:], startTag)
		if startIdx == -1 {
			break
		}
		startIdx += offset + len(startTag)

		endIdx := strings.Index(html[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		endIdx += startIdx

		originalURL := html[startIdx:endIdx]
		trackedURL := ClickTrackURL(baseURL, secret, messageID, originalURL)

		html = html[:startIdx] + trackedURL + html[endIdx:]
		offset = startIdx + len(trackedURL)
	}

	return html
}
