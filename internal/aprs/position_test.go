package aprs

import "testing"

func TestFormatPosition(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lon     float64
		comment string
		want    string
	}{
		{name: "south east", lat: -25.75, lon: 28.2, want: `!2545.00S\02812.00Ea`},
		{name: "north west", lat: 37.7749, lon: -122.4194, want: `!3746.49N\12225.16Wa`},
		{name: "zero is north east", lat: 0, lon: 0, want: `!0000.00N\00000.00Ea`},
		{name: "small minutes padded", lat: 1.0883, lon: 2.0883, want: `!0105.30N\00205.30Ea`},
		{name: "minutes carry into degrees", lat: 10.99995, lon: -20.99995, want: `!1100.00N\02100.00Wa`},
		{name: "minutes rounded once", lat: 0.12125, lon: 0.12125, want: `!0007.27N\00007.27Ea`},
		{name: "comment appended", lat: -25.75, lon: 28.2, comment: "Meshtastic Node !a1b2c3d4", want: `!2545.00S\02812.00EaMeshtastic Node !a1b2c3d4`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatPosition(tc.lat, tc.lon, tc.comment); got != tc.want {
				t.Fatalf("FormatPosition() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReportLine(t *testing.T) {
	got := ReportLine("ZS6ABC-9", `!2545.00S\02812.00Ea`)
	want := `ZS6ABC-9>APRS,TCPIP*:!2545.00S\02812.00Ea`
	if got != want {
		t.Fatalf("ReportLine() = %q, want %q", got, want)
	}
}
