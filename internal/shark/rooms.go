package shark

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

// maxRoomStringLen is the longest room name or list identifier the wire
// format can carry. Each string is length-prefixed with a single byte, and
// the app's encoder only ever emits prefixes below 0x80.
const maxRoomStringLen = 127

// AreasToClean is the "rooms to clean" command payload. It serialises to a
// tagged binary structure, base64-encoded, used as the string value of a
// datapoint write to the vacuum's room-clean property.
type AreasToClean struct {
	listID string
	rooms  []string
}

// NewAreasToClean creates a payload for the given room list identifier.
// The identifier comes from the vacuum's reported room list.
func NewAreasToClean(listID string) *AreasToClean {
	return &AreasToClean{listID: listID}
}

// AddRoom appends a room name to the clean list.
func (a *AreasToClean) AddRoom(room string) {
	a.rooms = append(a.rooms, room)
}

// Rooms returns the rooms added so far.
func (a *AreasToClean) Rooms() []string {
	return a.rooms
}

// Encode serialises the payload to its base64 wire form.
//
// Layout: the fixed header 80 01 0B CA 02, one length byte covering the
// rest, then per room 0A <len><utf8 name>, then 1A <len><list id>. The
// trailing length byte after each tag is a single-byte string length
// prefix, which caps every string at 127 bytes.
//
// Returns:
//   - string: Base64-encoded payload
//   - error: If the list id is empty, or any string exceeds the length cap
func (a *AreasToClean) Encode() (string, error) {
	if a.listID == "" {
		return "", fmt.Errorf("%w: empty room list id", ErrRoomEncoding)
	}
	if len(a.listID) > maxRoomStringLen {
		return "", fmt.Errorf("%w: list id %q exceeds %d bytes", ErrRoomEncoding, a.listID, maxRoomStringLen)
	}

	// Each room contributes its tag byte, its length prefix, and its
	// bytes; the list id contributes the same. The total must itself fit
	// in the single length byte after the header.
	total := 2 + len(a.listID)
	for _, room := range a.rooms {
		if room == "" {
			return "", fmt.Errorf("%w: empty room name", ErrRoomEncoding)
		}
		if len(room) > maxRoomStringLen {
			return "", fmt.Errorf("%w: room %q exceeds %d bytes", ErrRoomEncoding, room, maxRoomStringLen)
		}
		total += 2 + len(room)
	}
	if total > 0xFF {
		return "", fmt.Errorf("%w: payload length %d exceeds one byte", ErrRoomEncoding, total)
	}

	var buf bytes.Buffer
	buf.Write([]byte{0x80, 0x01, 0x0B, 0xCA, 0x02, byte(total)})

	for _, room := range a.rooms {
		buf.WriteByte(0x0A)
		buf.WriteByte(byte(len(room)))
		buf.WriteString(room)
	}

	buf.WriteByte(0x1A)
	buf.WriteByte(byte(len(a.listID)))
	buf.WriteString(a.listID)

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeRoomList parses a reported room-list payload into its list id and
// room names. The vacuum reports its known rooms in the same wire format
// the clean command uses; the list id recovered here is what a subsequent
// AreasToClean command must carry.
func DecodeRoomList(encoded string) (listID string, rooms []string, err error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrRoomEncoding, err)
	}
	if len(raw) < 6 || raw[0] != 0x80 || raw[1] != 0x01 {
		return "", nil, fmt.Errorf("%w: bad header", ErrRoomEncoding)
	}

	// Skip the header and its length byte, then walk the tagged strings.
	body := raw[6:]
	for len(body) > 0 {
		if len(body) < 2 {
			return "", nil, fmt.Errorf("%w: truncated tag", ErrRoomEncoding)
		}
		tag, n := body[0], int(body[1])
		if len(body) < 2+n {
			return "", nil, fmt.Errorf("%w: truncated string", ErrRoomEncoding)
		}
		value := string(body[2 : 2+n])
		body = body[2+n:]

		switch tag {
		case 0x0A:
			rooms = append(rooms, value)
		case 0x1A:
			listID = value
		default:
			// Unknown tags are skipped; the app's format has grown
			// tags before.
		}
	}

	if listID == "" {
		return "", nil, fmt.Errorf("%w: missing list id", ErrRoomEncoding)
	}
	return listID, rooms, nil
}
