package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// resolveVoterID prefers the explicit X-Voter-Id header. Requests without
// one get a salted fingerprint of client address and user agent, so
// anonymous browsers still hit the one-vote-per-poll guard.
func (s *Server) resolveVoterID(r *http.Request) string {
	if explicit := strings.TrimSpace(r.Header.Get("X-Voter-Id")); explicit != "" {
		return explicit
	}
	return fingerprintVoter(resolveClientIP(r), r.UserAgent(), s.voterSalt)
}

func fingerprintVoter(clientIP string, userAgent string, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	_, _ = mac.Write([]byte(clientIP))
	_, _ = mac.Write([]byte{'\n'})
	_, _ = mac.Write([]byte(userAgent))
	return "anon-" + hex.EncodeToString(mac.Sum(nil))[:32]
}

func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First hop is the client when the proxy chain appends.
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
