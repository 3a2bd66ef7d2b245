package entity

import (
	"regexp"
	"strings"

	"github.com/Zilliqa/gozilliqa-sdk/bech32"
)

var hexAddress = regexp.MustCompile("^(0x)?[0-9a-fA-F]{40}$")

// NormalizeAccount converts hex account identifiers to their bech32 form
// so events and archived documents carry a single canonical spelling.
// Anything that is not a hex address passes through lowercased.
func NormalizeAccount(account string) string {
	if hexAddress.MatchString(account) {
		if b32, err := bech32.ToBech32Address(account); err == nil {
			return b32
		}
	}

	return strings.ToLower(account)
}
