package meshtastic

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/skobkin/mesh2aprs/internal/config"
	"github.com/skobkin/mesh2aprs/internal/domain"
)

const (
	positionScale = 1e-7
	hwModelUnset  = 0
)

// defaultPSK is the well-known key behind the one-byte "AQ==" channel key.
var defaultPSK = [16]byte{0xd4, 0xf1, 0xbb, 0x3a, 0x20, 0x29, 0x07, 0x59, 0xf0, 0xbc, 0xff, 0xab, 0xcf, 0x4e, 0x69, 0x01}

// ErrMissingKey is returned for encrypted packets when no channel key is configured.
var ErrMissingKey = &config.SettingError{Key: "meshtastic.key", Reason: "is required to decrypt packets"}

// DecodeError marks a payload that could not be parsed or decrypted. The
// message should be dropped; it says nothing about the health of the stream.
type DecodeError struct {
	Stage string
	Size  int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s (%d bytes): %v", e.Stage, e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder turns MQTT ServiceEnvelope payloads into gateway telemetry.
type Decoder struct {
	block cipher.Block
}

// NewDecoder builds a decoder for the given base64 channel key. An empty key
// is accepted; such a decoder only handles unencrypted packets.
func NewDecoder(keyBase64 string) (*Decoder, error) {
	key, err := parseKey(keyBase64)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return &Decoder{}, nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &config.SettingError{Key: "meshtastic.key", Reason: err.Error()}
	}

	return &Decoder{block: block}, nil
}

func parseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, &config.SettingError{Key: "meshtastic.key", Reason: "is not valid base64"}
	}

	switch len(key) {
	case 1:
		// Single byte keys select a variant of the default PSK; 0 disables encryption.
		if key[0] == 0 {
			return nil, nil
		}
		expanded := defaultPSK
		expanded[len(expanded)-1] += key[0] - 1

		return expanded[:], nil
	case 16, 24, 32:
		return key, nil
	default:
		return nil, &config.SettingError{Key: "meshtastic.key", Reason: fmt.Sprintf("has unsupported length %d", len(key))}
	}
}

// Decode returns a Position or Identity record, or nil for packets the
// gateway does not care about. Malformed input yields a *DecodeError.
func (d *Decoder) Decode(payload []byte) (domain.Telemetry, error) {
	pkt, ok, err := parseEnvelope(payload)
	if err != nil {
		return nil, &DecodeError{Stage: "service envelope", Size: len(payload), Err: err}
	}
	if !ok {
		return nil, nil
	}

	dataBytes := pkt.decoded
	if !pkt.hasDecoded {
		if !pkt.hasEncrypted {
			return nil, nil
		}
		if d.block == nil {
			return nil, fmt.Errorf("packet %d from !%s: %w", pkt.id, domain.FormatNodeNum(pkt.from), ErrMissingKey)
		}
		dataBytes = d.decrypt(pkt)
	}

	data, err := parseData(dataBytes)
	if err != nil {
		return nil, &DecodeError{Stage: "data", Size: len(dataBytes), Err: err}
	}

	nodeID := domain.FormatNodeNum(pkt.from)
	switch data.portnum {
	case PortPosition:
		return decodePosition(nodeID, data.payload)
	case PortNodeInfo:
		return decodeIdentity(nodeID, data.payload)
	default:
		return nil, nil
	}
}

func (d *Decoder) decrypt(pkt meshPacket) []byte {
	var nonce [aes.BlockSize]byte
	binary.LittleEndian.PutUint64(nonce[0:8], uint64(pkt.id))
	binary.LittleEndian.PutUint64(nonce[8:16], uint64(pkt.from))

	out := make([]byte, len(pkt.encrypted))
	cipher.NewCTR(d.block, nonce[:]).XORKeyStream(out, pkt.encrypted)

	return out
}

func decodePosition(nodeID string, payload []byte) (domain.Telemetry, error) {
	pos, err := parsePosition(payload)
	if err != nil {
		return nil, &DecodeError{Stage: "position", Size: len(payload), Err: err}
	}
	// Positions without a fix carry no coordinates.
	if !pos.hasLatitude || !pos.hasLongitude {
		return nil, nil
	}

	return domain.Position{
		NodeID:    nodeID,
		Latitude:  float64(pos.latitudeI) * positionScale,
		Longitude: float64(pos.longitudeI) * positionScale,
		Altitude:  pos.altitude,
		Time:      pos.time,
	}, nil
}

func decodeIdentity(nodeID string, payload []byte) (domain.Telemetry, error) {
	user, err := parseUser(payload)
	if err != nil {
		return nil, &DecodeError{Stage: "user", Size: len(payload), Err: err}
	}

	id := domain.Identity{
		NodeID:    nodeID,
		LongName:  user.longName,
		ShortName: user.shortName,
	}
	if user.hwModel != hwModelUnset {
		id.HwModel = HardwareModelName(user.hwModel)
	}

	return id, nil
}
