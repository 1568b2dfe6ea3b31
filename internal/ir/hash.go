package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints. The version suffix allows the
// algorithm to change without colliding with stored values.
const (
	DomainOrder      = "loadorder/order/v1"
	DomainMembership = "loadorder/membership/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// OrderFingerprint hashes the key sequence of a sort order.
// Two orders with the same keys in the same positions share a fingerprint.
func OrderFingerprint(items []SortItemData) (string, error) {
	canonical, err := MarshalCanonical(Keys(items))
	if err != nil {
		return "", fmt.Errorf("OrderFingerprint: %w", err)
	}
	return hashWithDomain(DomainOrder, canonical), nil
}

// MembershipFingerprint hashes the live membership of one variety.
// Only key, enabled flag and group are included; display names do not
// influence reconciliation.
func MembershipFingerprint(items []LoadoutItem) (string, error) {
	entries := make([]any, len(items))
	for i, item := range items {
		entries[i] = map[string]any{
			"key":     item.Key,
			"enabled": item.IsEnabled,
			"group":   item.ModGroupID,
			"seq":     item.Seq,
		}
	}
	canonical, err := MarshalCanonical(entries)
	if err != nil {
		return "", fmt.Errorf("MembershipFingerprint: %w", err)
	}
	return hashWithDomain(DomainMembership, canonical), nil
}

// MustOrderFingerprint is like OrderFingerprint but panics on error.
// Keys are always strings, so the error path is unreachable in practice.
func MustOrderFingerprint(items []SortItemData) string {
	fp, err := OrderFingerprint(items)
	if err != nil {
		panic(err)
	}
	return fp
}
