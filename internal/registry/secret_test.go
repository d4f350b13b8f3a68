package registry

import (
	"errors"
	"testing"
)

func TestObfuscateRoundTrip(t *testing.T) {
	tests := []string{
		"hunter2",
		"",
		"pässwörd with ünicode",
		"a-much-longer-password-than-the-pad-keystream-itself-to-cover-wraparound",
	}

	for _, cleartext := range tests {
		stored := Obfuscate(cleartext)
		if stored == cleartext && cleartext != "" {
			t.Errorf("Obfuscate(%q) did not change the value", cleartext)
		}

		recovered, err := Deobfuscate(stored)
		if err != nil {
			t.Fatalf("Deobfuscate(%q) error = %v", stored, err)
		}
		if recovered != cleartext {
			t.Errorf("round trip = %q, want %q", recovered, cleartext)
		}
	}
}

func TestDeobfuscate_Malformed(t *testing.T) {
	if _, err := Deobfuscate("not!!valid!!base64"); !errors.Is(err, ErrMalformedSecret) {
		t.Errorf("Deobfuscate() error = %v, want ErrMalformedSecret", err)
	}
}
