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
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	// Packet response. From a real ntpd run.
	ntpResponse = &Packet{
		Settings:       36,
		Stratum:        1,
		Poll:           3,
		Precision:      -32,
		RootDelay:      0,
		RootDispersion: 10,
		ReferenceID:    1178738720,
		RefTimeSec:     3794209800,
		RefTimeFrac:    0,
		OrigTimeSec:    3794210679,
		OrigTimeFrac:   2718216404,
		RxTimeSec:      3794210679,
		RxTimeFrac:     2718375472,
		TxTimeSec:      3794210679,
		TxTimeFrac:     2719753478,
	}
	ntpResponseBytes = []byte{36, 1, 3, 224, 0, 0, 0, 0, 0, 0, 0, 10, 70, 66, 32, 32, 226, 39, 12, 8, 0, 0, 0, 0, 226, 39, 15, 119, 162, 4, 176, 212, 226, 39, 15, 119, 162, 7, 30, 48, 226, 39, 15, 119, 162, 28, 37, 6}
)

func TestResponseConversion(t *testing.T) {
	b, err := ntpResponse.Bytes()
	require.NoError(t, err)
	require.Equal(t, ntpResponseBytes, b)
}

func TestBytesToPacket(t *testing.T) {
	packet, err := BytesToPacket(ntpResponseBytes)
	require.NoError(t, err)
	require.Equal(t, ntpResponse, packet)
}

func TestBytesToPacketShortBuffer(t *testing.T) {
	_, err := BytesToPacket([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestRequestSize(t *testing.T) {
	req := NewRequest(0x1122334455667788)
	b, err := req.Bytes()
	require.NoError(t, err)
	require.Equal(t, PacketSizeBytes, len(b))
}

func TestNewRequestSettings(t *testing.T) {
	req := NewRequest(0)
	require.Equal(t, ourVersion, req.Version())
	require.Equal(t, ModeClient, req.Mode())
}

func TestValidReplyAcceptsServerAndBroadcast(t *testing.T) {
	require.NoError(t, ntpResponse.ValidReply())
	broadcast := *ntpResponse
	broadcast.Settings = (LeapNoWarning << 6) | (3 << 3) | ModeBroadcast
	require.NoError(t, broadcast.ValidReply())
}

func TestValidReplyRejectsOldVersion(t *testing.T) {
	bad := *ntpResponse
	bad.Settings = (LeapNoWarning << 6) | (2 << 3) | ModeServer
	require.Error(t, bad.ValidReply())
}

func TestValidReplyRejectsWrongMode(t *testing.T) {
	bad := *ntpResponse
	bad.Settings = (LeapNoWarning << 6) | (3 << 3) | ModeClient
	require.Error(t, bad.ValidReply())
}

func TestOriginTimestampRoundTrip(t *testing.T) {
	req := NewRequest(0x1122334455667788)
	require.Equal(t, uint64(0x1122334455667788), uint64(req.TxTimeSec)<<32|uint64(req.TxTimeFrac))

	reply := &Packet{OrigTimeSec: req.TxTimeSec, OrigTimeFrac: req.TxTimeFrac}
	require.Equal(t, uint64(0x1122334455667788), reply.OriginTimestamp())
}

func TestRefIDAsIPv4(t *testing.T) {
	p := &Packet{ReferenceID: 0x01020304}
	require.Equal(t, uint32(0x01020304), p.RefIDAsIPv4())
	b := p.DecodeRefID()
	require.Equal(t, [4]byte{1, 2, 3, 4}, b)
}
