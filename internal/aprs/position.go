package aprs

import (
	"fmt"
	"math"
	"strings"
)

const reportPath = "APRS,TCPIP*"

// FormatPosition renders an uncompressed APRS position without timestamp
// ("!DDMM.mmN\DDDMM.mmEa") followed by the comment.
func FormatPosition(lat, lon float64, comment string) string {
	latDeg, latMin := degreesMinutes(lat)
	lonDeg, lonMin := degreesMinutes(lon)

	latHem := "N"
	if lat < 0 {
		latHem = "S"
	}
	lonHem := "E"
	if lon < 0 {
		lonHem = "W"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "!%02d%05.2f%s\\%03d%05.2f%sa", latDeg, latMin, latHem, lonDeg, lonMin, lonHem)
	b.WriteString(comment)

	return b.String()
}

// ReportLine builds a TCPIP-gated report frame without the trailing CRLF.
func ReportLine(callsign, payload string) string {
	return callsign + ">" + reportPath + ":" + payload
}

// degreesMinutes splits an absolute coordinate into whole degrees and minutes.
// Minutes that would print as 60.00 carry into degrees.
func degreesMinutes(v float64) (int, float64) {
	v = math.Abs(v)
	deg := int(v)
	minutes := (v - float64(deg)) * 60
	if math.Round(minutes*100) >= 6000 {
		deg++
		minutes = 0
	}

	return deg, minutes
}
