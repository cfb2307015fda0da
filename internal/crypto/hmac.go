package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// HMACAuth holds the credentials for HMAC-authenticated requests against an
// order-book venue's REST API.
type HMACAuth struct {
	Key    string // API key
	Secret string // API secret
}

// Headers returns the authentication headers for a venue API request. The
// signature is HMAC-SHA256(secret, timestamp+method+path+body) encoded as
// base64.
func (h *HMACAuth) Headers(method, path, body string) map[string]string {
	ts := strconv.FormatInt(time.Now().UTC().Unix(), 10)

	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write([]byte(ts + method + path + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"X-API-KEY":       h.Key,
		"X-API-TIMESTAMP": ts,
		"X-API-SIGNATURE": sig,
	}
}
