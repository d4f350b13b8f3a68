package registry

import (
	"encoding/base64"
	"fmt"
)

// secretPad is the keystream for the reversible password obfuscation. This
// is a deterrent against casual inspection of the settings table, not a
// security boundary: anyone with the database file and this source can
// recover the password. Protect the database file itself (it is created
// 0600).
const secretPad = "gray-logic-shark-settings-pad"

// Obfuscate encodes a cleartext secret for storage.
func Obfuscate(cleartext string) string {
	data := []byte(cleartext)
	for i := range data {
		data[i] ^= secretPad[i%len(secretPad)]
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Deobfuscate recovers a cleartext secret stored with Obfuscate.
func Deobfuscate(stored string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	for i := range data {
		data[i] ^= secretPad[i%len(secretPad)]
	}
	return string(data), nil
}
