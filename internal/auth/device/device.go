// Package device derives device display names and binding fingerprints from
// User-Agent strings.
//
// Fingerprints are intentionally coarse: browser name, major version, and OS.
// Minor/patch browser updates must not rotate the fingerprint, or every
// auto-update would read as a device mismatch.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Service computes device fingerprints for refresh token binding. When
// disabled it returns empty fingerprints and binding checks are skipped.
type Service struct {
	enabled bool
}

// NewService constructs a device service.
func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ParseUserAgent renders a human-readable device name ("Chrome on Mac OS X")
// for session listings.
func ParseUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)
	name, _ := ua.Browser()
	if name == "" {
		name = "Unknown Browser"
	}

	osName := ""
	if ua.Mobile() && ua.Platform() != "" {
		osName = ua.Platform()
	} else if info := ua.OSInfo(); info.Name != "" {
		osName = info.Name
	} else if ua.Platform() != "" {
		osName = ua.Platform()
	}
	if osName == "" {
		osName = "Unknown OS"
	}

	return strings.TrimSpace(name + " on " + osName)
}

// ComputeFingerprint hashes the stable parts of a User-Agent into a binding
// fingerprint: browser name, major version, and OS. Returns "" when the
// service is disabled.
func (s *Service) ComputeFingerprint(rawUA string) string {
	if !s.enabled {
		return ""
	}

	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	canonical := name + "/" + majorVersion(version) + " " + ua.OS()

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether a presented fingerprint matches the
// stored one. Drift is only meaningful when both sides carry a fingerprint.
func (s *Service) CompareFingerprints(stored, presented string) (matched, drift bool) {
	if stored == "" || presented == "" {
		return true, false
	}
	if stored == presented {
		return true, false
	}
	return false, true
}

func majorVersion(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}
