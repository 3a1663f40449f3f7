package meshtastic

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/skobkin/mesh2aprs/internal/config"
	"github.com/skobkin/mesh2aprs/internal/domain"
	"google.golang.org/protobuf/encoding/protowire"
)

const testKey = "1PG7OiApB1nwvP+rz05pAQ=="

func encodePosition(latI, lonI, alt int32, ts uint32) []byte {
	var b []byte
	b = protowire.AppendTag(b, positionLatitudeI, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, uint32(latI))
	b = protowire.AppendTag(b, positionLongitudeI, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, uint32(lonI))
	b = protowire.AppendTag(b, positionAltitude, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(alt)))
	b = protowire.AppendTag(b, positionTime, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, ts)

	return b
}

func encodeUser(longName, shortName string, hwModel uint64) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "!a1b2c3d4")
	b = protowire.AppendTag(b, userLongName, protowire.BytesType)
	b = protowire.AppendString(b, longName)
	b = protowire.AppendTag(b, userShortName, protowire.BytesType)
	b = protowire.AppendString(b, shortName)
	b = protowire.AppendTag(b, userHwModel, protowire.VarintType)
	b = protowire.AppendVarint(b, hwModel)

	return b
}

func encodeData(portnum uint64, payload []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, dataPortnum, protowire.VarintType)
	b = protowire.AppendVarint(b, portnum)
	b = protowire.AppendTag(b, dataPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)

	return b
}

func encodeEnvelope(from, id uint32, variant protowire.Number, inner []byte) []byte {
	var pkt []byte
	pkt = protowire.AppendTag(pkt, packetFrom, protowire.Fixed32Type)
	pkt = protowire.AppendFixed32(pkt, from)
	pkt = protowire.AppendTag(pkt, 2, protowire.Fixed32Type)
	pkt = protowire.AppendFixed32(pkt, math.MaxUint32)
	pkt = protowire.AppendTag(pkt, variant, protowire.BytesType)
	pkt = protowire.AppendBytes(pkt, inner)
	pkt = protowire.AppendTag(pkt, packetID, protowire.Fixed32Type)
	pkt = protowire.AppendFixed32(pkt, id)

	var env []byte
	env = protowire.AppendTag(env, envelopePacket, protowire.BytesType)
	env = protowire.AppendBytes(env, pkt)
	env = protowire.AppendTag(env, 2, protowire.BytesType)
	env = protowire.AppendString(env, "LongFast")
	env = protowire.AppendTag(env, 3, protowire.BytesType)
	env = protowire.AppendString(env, "!deadbeef")

	return env
}

func encryptData(t *testing.T, keyB64 string, from, id uint32, plain []byte) []byte {
	t.Helper()

	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	var nonce [16]byte
	binary.LittleEndian.PutUint64(nonce[:8], uint64(id))
	binary.LittleEndian.PutUint64(nonce[8:], uint64(from))
	out := make([]byte, len(plain))
	cipher.NewCTR(block, nonce[:]).XORKeyStream(out, plain)

	return out
}

func mustNewDecoder(t *testing.T, key string) *Decoder {
	t.Helper()

	d, err := NewDecoder(key)
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	return d
}

func TestDecoder_DecryptsPositionRoundTrip(t *testing.T) {
	const (
		from = uint32(0xa1b2c3d4)
		id   = uint32(0x1234)
	)
	plain := encodeData(PortPosition, encodePosition(-257_500_000, 282_000_000, 1420, 1_735_123_456))
	payload := encodeEnvelope(from, id, packetEncrypted, encryptData(t, testKey, from, id, plain))

	got, err := mustNewDecoder(t, testKey).Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pos, ok := got.(domain.Position)
	if !ok {
		t.Fatalf("expected position record, got %T", got)
	}
	if pos.NodeID != "a1b2c3d4" {
		t.Fatalf("unexpected node id: %q", pos.NodeID)
	}
	if math.Abs(pos.Latitude-(-25.75)) > 1e-7 || math.Abs(pos.Longitude-28.2) > 1e-7 {
		t.Fatalf("unexpected coordinates: %v, %v", pos.Latitude, pos.Longitude)
	}
	if pos.Altitude != 1420 || pos.Time != 1_735_123_456 {
		t.Fatalf("unexpected altitude/time: %d, %d", pos.Altitude, pos.Time)
	}
}

func TestDecoder_ShortKeySelectsDefaultPSK(t *testing.T) {
	const (
		from = uint32(0x0000beef)
		id   = uint32(77)
	)
	plain := encodeData(PortNodeInfo, encodeUser("Base Camp", "BASE", 43))
	payload := encodeEnvelope(from, id, packetEncrypted, encryptData(t, testKey, from, id, plain))

	got, err := mustNewDecoder(t, "AQ==").Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := domain.Identity{NodeID: "0000beef", LongName: "Base Camp", ShortName: "BASE", HwModel: "HELTEC_V3"}
	if got != want {
		t.Fatalf("unexpected identity: got %+v want %+v", got, want)
	}
}

func TestDecoder_PlaintextPacketSkipsDecryption(t *testing.T) {
	payload := encodeEnvelope(0x01020304, 9, packetDecoded, encodeData(PortPosition, encodePosition(10_000_000, -20_000_000, -5, 0)))

	got, err := mustNewDecoder(t, "").Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pos, ok := got.(domain.Position)
	if !ok {
		t.Fatalf("expected position record, got %T", got)
	}
	if pos.NodeID != "01020304" || pos.Latitude != 1 || pos.Longitude != -2 || pos.Altitude != -5 {
		t.Fatalf("unexpected position: %+v", pos)
	}
}

func TestDecoder_UnknownHardwareModelIsStringified(t *testing.T) {
	payload := encodeEnvelope(1, 1, packetDecoded, encodeData(PortNodeInfo, encodeUser("X", "X", 9999)))

	got, err := mustNewDecoder(t, "").Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id := got.(domain.Identity); id.HwModel != "9999" {
		t.Fatalf("unexpected hw model: %q", id.HwModel)
	}
}

func TestDecoder_UnsetHardwareModelIsEmpty(t *testing.T) {
	payload := encodeEnvelope(1, 1, packetDecoded, encodeData(PortNodeInfo, encodeUser("X", "X", 0)))

	got, err := mustNewDecoder(t, "").Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id := got.(domain.Identity); id.HwModel != "" {
		t.Fatalf("expected empty hw model, got %q", id.HwModel)
	}
}

func TestDecoder_IgnoresOtherPortsAndEmptyPackets(t *testing.T) {
	noFix := encodeData(PortPosition, protowire.AppendVarint(protowire.AppendTag(nil, positionAltitude, protowire.VarintType), 10))
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "text message", payload: encodeEnvelope(1, 1, packetDecoded, encodeData(1, []byte("hello")))},
		{name: "telemetry", payload: encodeEnvelope(1, 1, packetDecoded, encodeData(67, nil))},
		{name: "position without fix", payload: encodeEnvelope(1, 1, packetDecoded, noFix)},
		{name: "no packet", payload: protowire.AppendString(protowire.AppendTag(nil, 2, protowire.BytesType), "LongFast")},
		{name: "empty", payload: nil},
	}

	d := mustNewDecoder(t, testKey)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Decode(tc.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != nil {
				t.Fatalf("expected no record, got %+v", got)
			}
		})
	}
}

func TestDecoder_MalformedInputYieldsDecodeError(t *testing.T) {
	truncatedInner := encodeEnvelope(1, 1, packetDecoded, []byte{0x0a, 0x05, 0x01})
	tests := []struct {
		name      string
		payload   []byte
		wantStage string
	}{
		{name: "garbage envelope", payload: []byte{0xff, 0xff, 0xff}, wantStage: "service envelope"},
		{name: "truncated data", payload: truncatedInner, wantStage: "data"},
		{
			name:      "truncated position",
			payload:   encodeEnvelope(1, 1, packetDecoded, encodeData(PortPosition, []byte{0x0d, 0x01})),
			wantStage: "position",
		},
	}

	d := mustNewDecoder(t, testKey)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Decode(tc.payload)
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if decodeErr.Stage != tc.wantStage {
				t.Fatalf("unexpected stage: got %q want %q", decodeErr.Stage, tc.wantStage)
			}
		})
	}
}

func TestDecoder_EncryptedWithoutKeyIsConfigurationError(t *testing.T) {
	payload := encodeEnvelope(1, 1, packetEncrypted, []byte{0x01, 0x02})

	_, err := mustNewDecoder(t, "").Decode(payload)
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	var settingErr *config.SettingError
	if !errors.As(err, &settingErr) || settingErr.Key != "meshtastic.key" {
		t.Fatalf("expected setting error for meshtastic.key, got %v", err)
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		t.Fatalf("missing key must not be reported as decode error")
	}
}

func TestNewDecoder_RejectsInvalidKeys(t *testing.T) {
	for _, key := range []string{"not base64!", "AQID"} {
		_, err := NewDecoder(key)
		var settingErr *config.SettingError
		if !errors.As(err, &settingErr) {
			t.Fatalf("expected setting error for key %q, got %v", key, err)
		}
	}
}

func TestParseKey_ExpandsShortKeys(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantNil  bool
		wantLast byte
	}{
		{name: "empty", in: "", wantNil: true},
		{name: "disabled", in: "AA==", wantNil: true},
		{name: "default", in: "AQ==", wantLast: 0x01},
		{name: "simple1", in: "Ag==", wantLast: 0x02},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := parseKey(tc.in)
			if err != nil {
				t.Fatalf("parse key: %v", err)
			}
			if tc.wantNil {
				if key != nil {
					t.Fatalf("expected nil key, got %x", key)
				}
				return
			}
			if len(key) != 16 || key[0] != 0xd4 || key[15] != tc.wantLast {
				t.Fatalf("unexpected expanded key: %x", key)
			}
		})
	}
}
