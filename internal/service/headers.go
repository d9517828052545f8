package service

import (
	"net/http"
)

const userAgent = "merweb-gateway/1.0"

// propagateHeaders builds the outbound header set. Authorization is the only
// inbound header copied, and it is copied verbatim.
func propagateHeaders(src http.Header, hasBody bool) http.Header {
	dst := make(http.Header, 4)
	if vals := src.Values("Authorization"); len(vals) > 0 {
		dst["Authorization"] = append([]string(nil), vals...)
	}
	if hasBody {
		dst.Set("Content-Type", "application/json")
	}
	dst.Set("Accept", "application/json")
	dst.Set("User-Agent", userAgent)
	return dst
}
