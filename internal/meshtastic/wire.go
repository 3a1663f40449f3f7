package meshtastic

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers of the subset of the Meshtastic protobufs the gateway reads.
const (
	envelopePacket protowire.Number = 1

	packetFrom      protowire.Number = 1
	packetDecoded   protowire.Number = 4
	packetEncrypted protowire.Number = 5
	packetID        protowire.Number = 6

	dataPortnum protowire.Number = 1
	dataPayload protowire.Number = 2

	positionLatitudeI  protowire.Number = 1
	positionLongitudeI protowire.Number = 2
	positionAltitude   protowire.Number = 3
	positionTime       protowire.Number = 4

	userLongName  protowire.Number = 2
	userShortName protowire.Number = 3
	userHwModel   protowire.Number = 5
)

// PortNum values handled by the gateway.
const (
	PortPosition = 3
	PortNodeInfo = 4
)

type wireField struct {
	num   protowire.Number
	typ   protowire.Type
	value uint64
	bytes []byte
}

// walkFields calls fn for every top-level field in b. Unknown fields and
// groups are skipped; only malformed encodings fail.
func walkFields(b []byte, fn func(f wireField)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.value, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.value = uint64(v)
		case protowire.Fixed64Type:
			f.value, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		fn(f)
	}

	return nil
}

type meshPacket struct {
	from         uint32
	id           uint32
	decoded      []byte
	hasDecoded   bool
	encrypted    []byte
	hasEncrypted bool
}

func parseEnvelope(b []byte) (meshPacket, bool, error) {
	var (
		raw   []byte
		found bool
	)
	err := walkFields(b, func(f wireField) {
		if f.num == envelopePacket && f.typ == protowire.BytesType {
			raw = f.bytes
			found = true
		}
	})
	if err != nil || !found {
		return meshPacket{}, false, err
	}

	pkt, err := parseMeshPacket(raw)

	return pkt, true, err
}

func parseMeshPacket(b []byte) (meshPacket, error) {
	var pkt meshPacket
	err := walkFields(b, func(f wireField) {
		switch {
		case f.num == packetFrom && f.typ == protowire.Fixed32Type:
			pkt.from = uint32(f.value)
		case f.num == packetID && f.typ == protowire.Fixed32Type:
			pkt.id = uint32(f.value)
		case f.num == packetDecoded && f.typ == protowire.BytesType:
			pkt.decoded = f.bytes
			pkt.hasDecoded = true
		case f.num == packetEncrypted && f.typ == protowire.BytesType:
			pkt.encrypted = f.bytes
			pkt.hasEncrypted = true
		}
	})

	return pkt, err
}

type dataMessage struct {
	portnum uint64
	payload []byte
}

func parseData(b []byte) (dataMessage, error) {
	var d dataMessage
	err := walkFields(b, func(f wireField) {
		switch {
		case f.num == dataPortnum && f.typ == protowire.VarintType:
			d.portnum = f.value
		case f.num == dataPayload && f.typ == protowire.BytesType:
			d.payload = f.bytes
		}
	})

	return d, err
}

type positionMessage struct {
	latitudeI    int32
	longitudeI   int32
	hasLatitude  bool
	hasLongitude bool
	altitude     int32
	time         uint32
}

func parsePosition(b []byte) (positionMessage, error) {
	var p positionMessage
	err := walkFields(b, func(f wireField) {
		switch {
		case f.num == positionLatitudeI && f.typ == protowire.Fixed32Type:
			p.latitudeI = int32(uint32(f.value))
			p.hasLatitude = true
		case f.num == positionLongitudeI && f.typ == protowire.Fixed32Type:
			p.longitudeI = int32(uint32(f.value))
			p.hasLongitude = true
		case f.num == positionAltitude && f.typ == protowire.VarintType:
			p.altitude = int32(f.value)
		case f.num == positionTime && f.typ == protowire.Fixed32Type:
			p.time = uint32(f.value)
		}
	})

	return p, err
}

type userMessage struct {
	longName  string
	shortName string
	hwModel   uint64
}

func parseUser(b []byte) (userMessage, error) {
	var u userMessage
	err := walkFields(b, func(f wireField) {
		switch {
		case f.num == userLongName && f.typ == protowire.BytesType:
			u.longName = string(f.bytes)
		case f.num == userShortName && f.typ == protowire.BytesType:
			u.shortName = string(f.bytes)
		case f.num == userHwModel && f.typ == protowire.VarintType:
			u.hwModel = f.value
		}
	})

	return u, err
}
