package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DeriveCandidateID builds the deterministic candidate identifier from the
// best available contact identifier, preferring email over phone over name.
// The result is a short human prefix plus the first 12 hex chars of a
// SHA-256 over the tagged identifier, so the same candidate uploaded twice
// resolves to the same id.
func DeriveCandidateID(email, phone, name string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	name = strings.Join(strings.Fields(strings.TrimSpace(name)), " ")

	identifier := "unknown"
	prefix := "cand"
	switch {
	case email != "":
		identifier = "email:" + email
		if at := strings.Index(email, "@"); at > 0 {
			prefix = truncate(email[:at], 8)
		}
	case phone != "":
		identifier = "phone:" + phone
	case name != "":
		identifier = "name:" + name
		prefix = truncate(strings.ToLower(strings.ReplaceAll(name, " ", "")), 8)
	}

	sum := sha256.Sum256([]byte(identifier))
	return prefix + "_" + hex.EncodeToString(sum[:])[:12]
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	if s == "" {
		return "cand"
	}
	return s
}
