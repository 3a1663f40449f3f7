package aprs

import "strings"

const passcodeSeed = 0x73e2

// Passcode computes the APRS-IS verification code for a call-sign.
// The SSID suffix is ignored, so "N0CALL-9" and "N0CALL" share a code.
func Passcode(callsign string) uint16 {
	base, _, _ := strings.Cut(strings.TrimSpace(callsign), "-")
	base = strings.ToUpper(base)

	hash := uint16(passcodeSeed)
	for i := 0; i < len(base); i++ {
		if i%2 == 0 {
			hash ^= uint16(base[i]) << 8
		} else {
			hash ^= uint16(base[i])
		}
	}

	return hash & 0x7fff
}
