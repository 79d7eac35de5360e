/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PacketSizeBytes is the size of an NTPv3/v4 packet we speak: header plus
// four 64-bit timestamps, no extension fields or MAC.
const PacketSizeBytes = 48

// Packet is the 48-byte NTP packet body.
/*
http://seriot.ch/ntp.php
https://tools.ietf.org/html/rfc5905
   0                   1                   2                   3
   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
0 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |LI | VN  |Mode |    Stratum     |     Poll      |  Precision   |
4 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Delay                            |
8 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Dispersion                       |
12+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                          Reference ID                         |
16+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                     Reference Timestamp (64)                  |
24+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                      Origin Timestamp (64)                    |
32+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                      Receive Timestamp (64)                   |
40+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                      Transmit Timestamp (64)                  |
48+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

We never carry the semantic meaning of the origin timestamp we send: we
stamp it with our own host-counter reading at send time, and recover that
same value from the reply's Origin Timestamp field as our correlation
token. The server never has to understand what it's echoing.
*/
type Packet struct {
	Settings       uint8  // leap indicator, version, mode
	Stratum        uint8
	Poll           int8
	Precision      int8
	RootDelay      uint32
	RootDispersion uint32
	ReferenceID    uint32
	RefTimeSec     uint32
	RefTimeFrac    uint32
	OrigTimeSec    uint32
	OrigTimeFrac   uint32
	RxTimeSec      uint32
	RxTimeFrac     uint32
	TxTimeSec      uint32
	TxTimeFrac     uint32
}

// Leap indicator, version and mode values we emit or accept.
const (
	LeapNoWarning uint8 = 0

	VersionMin uint8 = 3 // we reject anything older
	ourVersion uint8 = 3

	ModeClient uint8 = 3
	ModeServer uint8 = 4
	ModeBroadcast uint8 = 5
)

// NewRequest builds a client-mode request packet with the given raw
// transmit-timestamp bits. The value is opaque to the wire codec: the
// transport loop passes it a ClockIndex cast to uint64.
func NewRequest(txTimestamp uint64) *Packet {
	return &Packet{
		Settings:     (LeapNoWarning << 6) | (ourVersion << 3) | ModeClient,
		TxTimeSec:    uint32(txTimestamp >> 32),
		TxTimeFrac:   uint32(txTimestamp),
	}
}

// Version returns the NTP version field.
func (p *Packet) Version() uint8 {
	return (p.Settings >> 3) & 0x7
}

// Mode returns the NTP mode field.
func (p *Packet) Mode() uint8 {
	return p.Settings & 0x7
}

// ValidReply reports whether p is an acceptable reply to a client-mode
// request: version >= 3, mode server (4) or broadcast (5).
func (p *Packet) ValidReply() error {
	if v := p.Version(); v < VersionMin {
		return fmt.Errorf("unsupported NTP version %d", v)
	}
	if m := p.Mode(); m != ModeServer && m != ModeBroadcast {
		return fmt.Errorf("unexpected NTP mode %d", m)
	}
	return nil
}

// OriginTimestamp reassembles the 64-bit value we stamped into the
// request and the server echoed back unchanged.
func (p *Packet) OriginTimestamp() uint64 {
	return uint64(p.OrigTimeSec)<<32 | uint64(p.OrigTimeFrac)
}

// DecodeRefID returns the four raw reference-id bytes as sent on the wire.
func (p *Packet) DecodeRefID() [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], p.ReferenceID)
	return b
}

// RefIDAsIPv4 interprets the reference id as an IPv4 address in network
// byte order, which is how stratum > 1 servers encode the address of
// their own upstream source.
func (p *Packet) RefIDAsIPv4() uint32 {
	b := p.DecodeRefID()
	return binary.BigEndian.Uint32(b[:])
}

// Bytes serialises p into the 48-byte wire format.
func (p *Packet) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BytesToPacket parses a 48-byte buffer into a Packet.
func BytesToPacket(raw []byte) (*Packet, error) {
	if len(raw) < PacketSizeBytes {
		return nil, fmt.Errorf("short NTP packet: %d bytes", len(raw))
	}
	packet := &Packet{}
	reader := bytes.NewReader(raw)
	if err := binary.Read(reader, binary.BigEndian, packet); err != nil {
		return nil, err
	}
	return packet, nil
}
