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

/*
Package transport runs the asynchronous transmit/receive loop that keeps
every server's sample ring fed without stalling measurement pacing: one
receive goroutine blocks on the socket and publishes into a bounded
channel, one pacer goroutine drains that channel, updates server state,
transmits the next round of requests, and emits one output row a second.

This mirrors the producer/consumer split the teacher uses between its
responder workers and its listener goroutines (see ntp/responder/server),
but inverted for a client: here the receive side only ever produces, and
all server state lives exclusively on the pacer side.
*/
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ntpmonitor/ntpmonitor/clock"
	protocol "github.com/ntpmonitor/ntpmonitor/ntp/protocol"

	"github.com/ntpmonitor/ntpmonitor/monitor/sample"
	"github.com/ntpmonitor/ntpmonitor/monitor/server"
	"github.com/ntpmonitor/ntpmonitor/ntptime"
)

// bufferSize is generous relative to PacketSizeBytes (48): large enough
// that a full packet always fits with room to spare.
const bufferSize = 128

// rxDatagram is what the receive goroutine publishes for every datagram
// it reads, before any server-state mutation happens.
type rxDatagram struct {
	t4     clock.ClockIndex
	addr   *net.UDPAddr
	packet *protocol.Packet
}

// TickFunc is called once per pacing tick, after the queue has been
// drained and before the next transmit burst, with the reference server's
// current wall time, the full server list (index 0 is the reference) and
// the local counter frequency estimate in MHz.
type TickFunc func(refTime time.Time, servers []*server.Server, counterMHz float64)

// Transport owns the UDP socket and the full set of monitored servers. Its
// zero value is not usable; build one with New.
type Transport struct {
	conn    *net.UDPConn
	servers []*server.Server
	byAddr  map[string]*server.Server

	localClock clock.Clock

	queue chan rxDatagram

	// OnTick, if set, is invoked once per pacing tick.
	OnTick TickFunc
	// OnDecodeError, if set, is invoked whenever a socket read fails or a
	// datagram fails to decode or fails ValidReply.
	OnDecodeError func(err error)
	// OnUnmatched, if set, is invoked for a datagram whose source
	// matches no configured server.
	OnUnmatched func(addr net.Addr)
}

// New binds an ephemeral UDP socket and returns a Transport ready to
// serve the given servers. servers[0] is the reference host: Transport
// uses its clock only for the timestamp passed to OnTick, and samples it
// like any other server.
func New(servers []*server.Server, localClock clock.Clock) (*Transport, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("binding local socket: %w", err)
	}
	byAddr := make(map[string]*server.Server, len(servers))
	for _, s := range servers {
		byAddr[s.Addr.String()] = s
	}
	return &Transport{
		conn:       conn,
		servers:    servers,
		byAddr:     byAddr,
		localClock: localClock,
		queue:      make(chan rxDatagram, len(servers)*8),
	}, nil
}

// Close releases the underlying socket. It unblocks a goroutine parked in
// ReadFromUDP, which is how Run's receive goroutine is told to exit.
func (tr *Transport) Close() error {
	return tr.conn.Close()
}

// Run starts the receive goroutine and drives the 1Hz pacer loop until ctx
// is cancelled. It blocks until the pacer loop exits.
func (tr *Transport) Run(ctx context.Context) {
	go tr.receiveLoop(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = tr.Close()
			return
		case <-ticker.C:
			tr.tick()
		}
	}
}

// receiveLoop is the producer: it blocks on the socket, stamps t4 the
// instant the read returns, decodes, and publishes. It never touches
// server state.
func (tr *Transport) receiveLoop(ctx context.Context) {
	buf := make([]byte, bufferSize)
	for {
		n, addr, err := tr.conn.ReadFromUDP(buf)
		t4 := clock.Now()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				if tr.OnDecodeError != nil {
					tr.OnDecodeError(err)
				}
				continue
			}
		}
		packet, err := protocol.BytesToPacket(buf[:n])
		if err == nil {
			err = packet.ValidReply()
		}
		if err != nil {
			log.Debugf("dropping datagram from %s: %v", addr, err)
			if tr.OnDecodeError != nil {
				tr.OnDecodeError(err)
			}
			continue
		}
		select {
		case tr.queue <- rxDatagram{t4: t4, addr: addr, packet: packet}:
		case <-ctx.Done():
			return
		}
	}
}

// tick is one pacer iteration: drain (4.C), transmit, emit (4.G). The
// drain happens-before the transmit, so the emitted row reflects only
// samples received strictly before this tick's transmit burst.
func (tr *Transport) tick() {
	tr.drain()
	tr.transmit()
	tr.emit()
}

// drain consumes every datagram currently queued, without blocking: an
// empty queue simply means no packets arrived this tick.
func (tr *Transport) drain() {
	for {
		select {
		case d := <-tr.queue:
			tr.apply(d)
		default:
			return
		}
	}
}

func (tr *Transport) apply(d rxDatagram) {
	s, ok := tr.byAddr[d.addr.String()]
	if !ok {
		log.Warningf("datagram from unmatched address %s", d.addr)
		if tr.OnUnmatched != nil {
			tr.OnUnmatched(d.addr)
		}
		return
	}
	smp := sample.Sample{
		T1: clock.ClockIndex(d.packet.OriginTimestamp()),
		T2: ntptime.NewTime(d.packet.RxTimeSec, d.packet.RxTimeFrac),
		T3: ntptime.NewTime(d.packet.TxTimeSec, d.packet.TxTimeFrac),
		T4: d.t4,
	}
	s.Update(smp, d.packet.ReferenceID, d.packet.Stratum)
}

func (tr *Transport) transmit() {
	for _, s := range tr.servers {
		t1 := clock.Now()
		req := protocol.NewRequest(uint64(t1))
		b, err := req.Bytes()
		if err != nil {
			log.Errorf("encoding request for %s: %v", s.Host, err)
			continue
		}
		if _, err := tr.conn.WriteToUDP(b, s.Addr); err != nil {
			log.Warningf("sending request to %s: %v", s.Host, err)
		}
	}
}

func (tr *Transport) emit() {
	if tr.OnTick == nil || len(tr.servers) == 0 {
		return
	}
	ref := tr.servers[0]
	refTime := ref.Clock.TimeAt(clock.Now()).Unix()
	tr.OnTick(refTime, tr.servers, tr.localClock.Frequency()/1e6)
}
