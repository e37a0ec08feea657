package semtech

import (
	"bytes"
	"testing"
)

// TestDecodeS1 is the spec's S1 seed scenario.
func TestDecodeS1(t *testing.T) {
	raw := []byte{
		0x02, 0xAB, 0xCD, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	}
	raw = append(raw, []byte(`{"rxpk":[]}`)...)

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Version != 0x02 {
		t.Fatalf("version = %x, want 2", f.Version)
	}
	if f.Token != [2]byte{0xAB, 0xCD} {
		t.Fatalf("token = %x, want ABCD", f.Token)
	}
	if f.Type != PushData {
		t.Fatalf("type = %v, want PUSH_DATA", f.Type)
	}
	want := GatewayID{1, 2, 3, 4, 5, 6, 7, 8}
	if f.GatewayID != want {
		t.Fatalf("gateway id = %x, want %x", f.GatewayID, want)
	}
	if string(f.Body) != `{"rxpk":[]}` {
		t.Fatalf("body = %q", f.Body)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode(make([]byte, 5)); err != ErrMalformedFrame {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
}

// TestRoundTrip is the spec's round-trip property: decode(encode_header +
// body) reproduces (version, token, type, gateway_id, body).
func TestRoundTrip(t *testing.T) {
	token := [2]byte{0x11, 0x22}
	gw := GatewayID{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x01, 0x02}
	body := []byte(`{"stat":{}}`)

	raw := append(EncodeHeader(ProtocolVersion, token, PushData, gw), body...)
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Version != ProtocolVersion || f.Token != token || f.Type != PushData || f.GatewayID != gw {
		t.Fatalf("header round trip mismatch: %+v", f)
	}
	if !bytes.Equal(f.Body, body) {
		t.Fatalf("body round trip mismatch: %q != %q", f.Body, body)
	}
}

func TestEncodePullRespNoSpaces(t *testing.T) {
	token := [2]byte{0x01, 0x02}
	gw := GatewayID{1, 2, 3, 4, 5, 6, 7, 8}
	txpk := struct {
		Data string `json:"data"`
	}{Data: "hello world"}

	frame, err := EncodePullResp(token, gw, txpk)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := frame[HeaderLength:]
	want := `{"txpk":{"data":"hello world"}}`
	if string(body) != want {
		t.Fatalf("body = %q, want %q", body, want)
	}
	if frame[3] != byte(PullResp) {
		t.Fatalf("type byte = %x, want PULL_RESP", frame[3])
	}
}

func TestEncodeAck(t *testing.T) {
	token := [2]byte{0x9, 0x9}
	gw := GatewayID{1, 1, 1, 1, 1, 1, 1, 1}
	ack := EncodeAck(ProtocolVersion, token, PushAck, gw)
	if len(ack) != HeaderLength {
		t.Fatalf("ack length = %d, want %d", len(ack), HeaderLength)
	}
	f, err := Decode(ack)
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if f.Type != PushAck || f.Token != token {
		t.Fatalf("ack mismatch: %+v", f)
	}
}
