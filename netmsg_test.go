package netmsg_test

import (
	"context"
	"net"
	"testing"
	"time"

	"netmsg/address"
	"netmsg/codec"
	"netmsg/netmsgclient"
	"netmsg/netmsgserver"
	"netmsg/reqmanager"
	"netmsg/wire"
)

func newFramer() wire.Framer {
	return wire.NewBinaryFramer(&codec.MsgpackCodec{})
}

func superPacket() wire.Packet {
	return wire.Packet{
		"str":   "string",
		"int":   int64(2),
		"float": 52.1,
		"list":  []any{int64(1), int64(5), int64(2), int64(4), int64(6)},
		"127":   int64(52),
	}
}

func equalPackets(a, b wire.Packet) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok {
			return false
		}
		av, aok := v.([]any)
		bv, bok := other.([]any)
		if aok && bok {
			if len(av) != len(bv) {
				return false
			}
			for i := range av {
				if av[i] != bv[i] {
					return false
				}
			}
			continue
		}
		if v != other {
			return false
		}
	}
	return true
}

func startEchoServer(t *testing.T) *netmsgserver.Server {
	t.Helper()
	tick := func(s *netmsgserver.Server, peer address.Address, packet wire.Packet) {
		if packet == nil {
			return
		}
		_ = s.Send(peer, packet)
	}
	srv, err := netmsgserver.New(address.New("127.0.0.1", 0), newFramer(), tick, 50*time.Millisecond, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := srv.Operate(); err != nil {
		t.Fatalf("Operate: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestScenarioEchoSinglePacket(t *testing.T) {
	srv := startEchoServer(t)

	client := netmsgclient.New(srv.Address(), newFramer(), time.Second)
	if _, err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	packet := superPacket()
	reply, err := client.Request(packet)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !equalPackets(packet, reply) {
		t.Fatalf("got %v, want %v", reply, packet)
	}
}

func TestScenarioEchoEvolvingPacket(t *testing.T) {
	srv := startEchoServer(t)

	client := netmsgclient.New(srv.Address(), newFramer(), time.Second)
	if _, err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	for i := 0; i < 24; i++ {
		packet := superPacket()
		packet["127"] = int64(52 + i)

		reply, err := client.Request(packet)
		if err != nil {
			t.Fatalf("Request at iteration %d: %v", i, err)
		}
		if !equalPackets(packet, reply) {
			t.Fatalf("iteration %d: got %v, want %v", i, reply, packet)
		}
	}
}

func TestScenarioManyClientsManyRequests(t *testing.T) {
	srv := startEchoServer(t)
	packet := superPacket()

	for c := 0; c < 64; c++ {
		client := netmsgclient.New(srv.Address(), newFramer(), time.Second)
		if _, err := client.Connect(); err != nil {
			t.Fatalf("client %d Connect: %v", c, err)
		}

		for r := 0; r < 4; r++ {
			reply, err := client.Request(packet)
			if err != nil {
				t.Fatalf("client %d request %d: %v", c, r, err)
			}
			if !equalPackets(packet, reply) {
				t.Fatalf("client %d request %d: got %v, want %v", c, r, reply, packet)
			}
		}
		client.Close()
	}
}

func TestScenarioGarbageThenGoodClient(t *testing.T) {
	srv := startEchoServer(t)

	garbageConn, err := net.DialTimeout("tcp", srv.Address().String(), time.Second)
	if err != nil {
		t.Fatalf("dial (garbage client): %v", err)
	}
	garbageConn.Write([]byte{100, 4, 12, 42, 254, 1})
	garbageConn.Close()

	packet := superPacket()
	goodClient := netmsgclient.New(srv.Address(), newFramer(), time.Second)
	if _, err := goodClient.Connect(); err != nil {
		t.Fatalf("Connect (good client): %v", err)
	}
	defer goodClient.Close()

	reply, err := goodClient.Request(packet)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !equalPackets(packet, reply) {
		t.Fatalf("got %v, want %v", reply, packet)
	}
}

func TestScenarioSendBeforeConnect(t *testing.T) {
	srv := startEchoServer(t)

	client := netmsgclient.New(srv.Address(), newFramer(), time.Second)
	if err := client.Send(wire.Packet{"1": int64(5)}); err == nil {
		t.Fatal("expected Send before Connect to fail")
	}

	if _, err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	packet := superPacket()
	reply, err := client.Request(packet)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !equalPackets(packet, reply) {
		t.Fatalf("got %v, want %v", reply, packet)
	}
}

func TestScenarioRequestManagerRoundTrip(t *testing.T) {
	m, err := reqmanager.New(address.New("127.0.0.1", 0), newFramer(), "", time.Second, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.Subscribe("TestRequest", func(ctx context.Context, p wire.Packet) (wire.Packet, error) {
		kw1, _ := p["kw1"].(int64)
		kw2, _ := p["kw2"].(int64)
		return wire.Packet{"response": kw1 + kw2}, nil
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if _, err := m.Server.Operate(); err != nil {
		t.Fatalf("Operate: %v", err)
	}
	defer m.Server.Close()

	client := netmsgclient.New(m.Server.Address(), newFramer(), time.Second)
	if _, err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	reply, err := client.Request(wire.Packet{
		reqmanager.DefaultHeaderKey: "TestRequest",
		"kw1":                       int64(7),
		"kw2":                       int64(4),
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if reply["response"] != int64(11) {
		t.Fatalf("got %v, want response=11", reply)
	}
}

func TestScenarioDoubleOperateLeavesServerRunning(t *testing.T) {
	srv := startEchoServer(t)

	if _, err := srv.Operate(); err == nil {
		t.Fatal("expected a second Operate to fail")
	}

	client := netmsgclient.New(srv.Address(), newFramer(), time.Second)
	if _, err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	packet := superPacket()
	reply, err := client.Request(packet)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !equalPackets(packet, reply) {
		t.Fatalf("got %v, want %v", reply, packet)
	}
}

func TestScenarioMalformedAddressFails(t *testing.T) {
	_, err := netmsgserver.New(address.New("", -1), newFramer(), func(*netmsgserver.Server, address.Address, wire.Packet) {}, time.Second, time.Millisecond, nil)
	if err == nil {
		t.Fatal("expected ServerError for a malformed address")
	}
}
