// Package shopify verifies Shopify-signed requests and maps Shopify
// payloads onto track requests.
package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Request headers set by Shopify on webhook deliveries
const (
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderTopic      = "X-Shopify-Topic"
)

// VerifyWebhook checks the base64 HMAC-SHA256 of the raw body against the header value
func VerifyWebhook(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// VerifyProxySignature checks the signature query parameter Shopify adds to
// app proxy requests: hex HMAC-SHA256 over the remaining parameters sorted by
// key, each rendered as key=value (multiple values joined by commas) and
// concatenated without a separator.
func VerifyProxySignature(secret string, query url.Values) bool {
	signature := query.Get("signature")
	if secret == "" || signature == "" {
		return false
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg strings.Builder
	for _, k := range keys {
		msg.WriteString(k)
		msg.WriteString("=")
		msg.WriteString(strings.Join(query[k], ","))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(msg.String()))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
