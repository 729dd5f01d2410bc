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

// Package iface is the UDP datagram transport for one node interface: it
// binds an interface's rx_lie_port, optionally joins its multicast group,
// and decodes inbound datagrams into lie.LieRcvd events. The packet
// sourcing rule ("miscabling tolerance") is enforced entirely by the LIE
// FSM's own PROCESS_LIE/CHECK_THREE_WAY logic; this layer forwards
// whatever decodes and authenticates, regardless of which peer sent it. A
// datagram whose DeliveryFingerprint matches the last one received from
// the same neighbor is counted as a repeated delivery and still forwarded,
// since periodic LIEs from an unchanged neighbor are byte-identical and
// each one must refresh the neighbor's holdtime in the FSM.
package iface

import (
	"fmt"
	"net"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/riftsim/rift/fsm/lie"
	"github.com/riftsim/rift/metrics"
	"github.com/riftsim/rift/protocol"
)

// Config describes the wiring one Conn needs, derived from a resolved
// topology interface descriptor plus its owning node.
type Config struct {
	LinkID protocol.LinkId

	// LocalIP is the address to bind rx_lie_port on.
	LocalIP net.IP
	RxPort  int

	// RxMcastAddr, when set, is joined as a multicast group on the bound
	// socket. Left nil, the interface is unicast-only (the loopback
	// point-to-point simulation case).
	RxMcastAddr net.IP

	// SendPort is the paired interface's rx_lie_port (this node's own
	// tx_lie_port, resolved by topology.pairInterfaces).
	SendPort int
	// SendAddr is the destination address datagrams are written to: the
	// multicast group if RxMcastAddr is set, otherwise a loopback unicast
	// address.
	SendAddr net.IP

	DSCP       int
	AcceptKeys map[uint32]protocol.Key
}

// Conn is the bound socket for one interface, wired to drive a lie.FSM.
type Conn struct {
	cfg  Config
	sock *net.UDPConn
	pc   *ipv4.PacketConn

	sendTo *net.UDPAddr
	fsm    *lie.FSM

	// lastFingerprint tracks, per sending neighbor, the DeliveryFingerprint
	// of the last decoded LIE datagram, so a repeated delivery can be
	// counted in metrics.DuplicateLieTotal. Only Start's own goroutine
	// touches this map.
	lastFingerprint map[protocol.SystemId]uint64

	log  *log.Entry
	stop chan struct{}
	done chan struct{}
}

// New binds cfg.RxPort, joins cfg.RxMcastAddr if set, wires fsm.Send to
// transmit on this socket, and returns the unstarted Conn. Call Start to
// begin the receive loop.
func New(cfg Config, fsm *lie.FSM) (*Conn, error) {
	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: cfg.LocalIP, Port: cfg.RxPort})
	if err != nil {
		return nil, fmt.Errorf("link %d: binding rx_lie_port %d: %w", cfg.LinkID, cfg.RxPort, err)
	}

	var pc *ipv4.PacketConn
	if cfg.RxMcastAddr != nil {
		pc = ipv4.NewPacketConn(sock)
		group := &net.UDPAddr{IP: cfg.RxMcastAddr}
		if err := pc.JoinGroup(nil, group); err != nil {
			sock.Close()
			return nil, fmt.Errorf("link %d: joining multicast group %s: %w", cfg.LinkID, cfg.RxMcastAddr, err)
		}
		if err := pc.SetMulticastLoopback(true); err != nil {
			sock.Close()
			return nil, fmt.Errorf("link %d: enabling multicast loopback: %w", cfg.LinkID, err)
		}
	}

	if fd, err := connFd(sock); err != nil {
		log.Warnf("link %d: failed to obtain socket fd for DSCP marking: %v", cfg.LinkID, err)
	} else if err := enableDSCP(fd, cfg.LocalIP, cfg.DSCP); err != nil {
		log.Warnf("link %d: failed to set DSCP: %v", cfg.LinkID, err)
	}

	c := &Conn{
		cfg:             cfg,
		sock:            sock,
		pc:              pc,
		sendTo:          &net.UDPAddr{IP: cfg.SendAddr, Port: cfg.SendPort},
		fsm:             fsm,
		lastFingerprint: map[protocol.SystemId]uint64{},
		log:             log.WithField("link_id", cfg.LinkID),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	fsm.Send = c.send
	return c, nil
}

// Start runs the receive loop in the caller's goroutine until Close is
// called, decoding each datagram and pushing a lie.LieRcvd event.
func (c *Conn) Start() {
	defer close(c.done)
	buf := make([]byte, 16*1024)
	for {
		n, addr, err := c.sock.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-c.stop:
				return
			default:
				c.log.Debugf("read error: %v", err)
				continue
			}
		}
		p, err := protocol.DecodeLIE(buf[:n], c.cfg.AcceptKeys)
		if err != nil {
			metrics.CodecDropsTotal.WithLabelValues(dropReason(err)).Inc()
			c.log.Debugf("dropping undecodable datagram from %s: %v", addr, err)
			continue
		}
		fp := protocol.DeliveryFingerprint(buf[:n])
		if last, ok := c.lastFingerprint[p.SenderSystemID]; ok && last == fp {
			metrics.DuplicateLieTotal.WithLabelValues(fmt.Sprintf("%d", c.cfg.LinkID)).Inc()
			c.log.Debugf("repeated LIE delivery from %s", addr)
		}
		c.lastFingerprint[p.SenderSystemID] = fp
		c.fsm.Push(lie.LieRcvd{Packet: p, Src: addr})
	}
}

// Close stops the receive loop and releases the socket.
func (c *Conn) Close() error {
	close(c.stop)
	err := c.sock.Close()
	<-c.done
	return err
}

// send marshals p, including any authentication envelope already attached
// by LIEPacket.Sign, and writes it to the paired interface. Send errors are logged, never surfaced to
// the FSM, per the transport/FSM error-handling split (spec §7).
func (c *Conn) send(p *protocol.LIEPacket) {
	b, err := p.MarshalBinary()
	if err != nil {
		c.log.Errorf("failed to marshal LIE packet: %v", err)
		return
	}
	if _, err := c.sock.WriteToUDP(b, c.sendTo); err != nil {
		c.log.Warnf("failed to send LIE packet to %s: %v", c.sendTo, err)
	}
}

// dropReason classifies a DecodeLIE failure for the codec-drops counter.
// DecodeLIE does not return typed errors (spec §7 treats every decode
// failure as a silent drop), so this distinguishes by message content
// rather than adding error types solely for metric labeling.
func dropReason(err error) string {
	if err == nil {
		return "unknown"
	}
	if strings.Contains(err.Error(), "authentication") {
		return "auth_failure"
	}
	return "malformed"
}
