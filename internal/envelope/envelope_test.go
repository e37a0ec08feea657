package envelope

import (
	"testing"

	"github.com/lorawan-server/gateway-bridge/pkg/lorawan"
	"github.com/lorawan-server/gateway-bridge/pkg/radio"
)

// TestPacketIDIdempotence is property 5: identical Rxpk produces identical
// packet_id, and a field change produces a different one.
func TestPacketIDIdempotence(t *testing.T) {
	rxpk := radio.Rxpk{Tmst: 100, Chan: 1, Rfch: 0, Freq: 915.2, Stat: 1, Modu: "LORA", Datr: "SF10BW500", Codr: "4/5", Size: 2, Data: "AQI="}

	id1, err := PacketID(rxpk)
	if err != nil {
		t.Fatalf("packet id: %v", err)
	}
	id2, err := PacketID(rxpk)
	if err != nil {
		t.Fatalf("packet id: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected idempotent id, got %q != %q", id1, id2)
	}
	if len(id1) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(id1))
	}

	rxpk.Tmst = 101
	id3, err := PacketID(rxpk)
	if err != nil {
		t.Fatalf("packet id: %v", err)
	}
	if id3 == id1 {
		t.Fatal("expected different id after field change")
	}
}

func TestPacketHashLength(t *testing.T) {
	h, err := PacketHash()
	if err != nil {
		t.Fatalf("packet hash: %v", err)
	}
	if len(h) != 32 {
		t.Fatalf("expected 32 hex chars (16 bytes), got %d", len(h))
	}
}

func TestBuildUplink(t *testing.T) {
	rxpk := radio.Rxpk{Tmst: 100, Freq: 915.2, Datr: "SF10BW500", Codr: "4/5", Modu: "LORA", Size: 2, Data: "AQI="}
	phy := &lorawan.PHYPayload{FPort: 57, FCnt16: 3, FRMPayload: []byte{0xAA, 0xBB}}

	env, err := BuildUplink(BuildUplinkInput{
		Rxpk:       rxpk,
		PHY:        phy,
		Plaintext:  []byte{0x01, 0x02},
		GatewayID:  "0102030405060708",
		DevAddr:    "26011BDA",
		PacketHash: "deadbeef",
	})
	if err != nil {
		t.Fatalf("build uplink: %v", err)
	}
	if env.Type != TypeUplink {
		t.Fatalf("type = %v", env.Type)
	}
	if env.Params.Port != 57 {
		t.Fatalf("port = %d, want 57", env.Params.Port)
	}
	if env.Params.CounterUp != 3 {
		t.Fatalf("counter_up = %d, want 3", env.Params.CounterUp)
	}
	if env.Params.Payload != "AQI=" {
		t.Fatalf("payload = %q, want AQI=", env.Params.Payload)
	}
	if env.Meta.Version != 1 {
		t.Fatalf("meta version = %d, want 1", env.Meta.Version)
	}
	if env.Params.Lora.Header.ADR || env.Params.Lora.Header.Confirmed {
		t.Fatal("expected all lora flags false")
	}
}

func TestBuildDownlinkResponseMirrorsRequest(t *testing.T) {
	req := ParamsDownlinkRequest{DeviceAddr: "26011BDA", CounterDown: 5, Port: 10, Payload: "aGVsbG8="}
	resp := BuildDownlinkResponse(req, "abc123")

	if resp.Type != TypeDownlinkResponse {
		t.Fatalf("type = %v", resp.Type)
	}
	if resp.Params.CounterDown != req.CounterDown || resp.Params.Port != req.Port || resp.Params.Payload != req.Payload {
		t.Fatalf("response params do not mirror request: %+v vs %+v", resp.Params, req)
	}
	if resp.Meta.PacketHash != "abc123" {
		t.Fatalf("packet_hash = %q, want echoed value", resp.Meta.PacketHash)
	}
}
