package radio

import "testing"

func TestRxpkValidate(t *testing.T) {
	r := Rxpk{Data: "AQIDBA==", Size: 4}
	if err := r.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRxpkValidateSizeMismatch(t *testing.T) {
	r := Rxpk{Data: "AQIDBA==", Size: 3}
	if err := r.Validate(); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestGatewayPacketLast(t *testing.T) {
	g := GatewayPacket{Rxpk: []Rxpk{{Mid: 1}, {Mid: 2}}}
	last, ok := g.Last()
	if !ok || last.Mid != 2 {
		t.Fatalf("last = %+v, ok=%v", last, ok)
	}
}

func TestGatewayPacketLastEmpty(t *testing.T) {
	if _, ok := (GatewayPacket{}).Last(); ok {
		t.Fatal("expected ok=false for empty batch")
	}
}

func TestTxpkValidate(t *testing.T) {
	tx := Txpk{Tmst: 100, Datr: "SF10BW500", Data: "AQ=="}
	if err := tx.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestTxpkValidateBothImmeAndTmst(t *testing.T) {
	tx := Txpk{Imme: true, Tmst: 100, Datr: "SF10BW500", Data: "AQ=="}
	if err := tx.Validate(); err == nil {
		t.Fatal("expected error for imme+tmst both set")
	}
}

func TestTxpkValidateBadDatr(t *testing.T) {
	tx := Txpk{Tmst: 100, Datr: "BOGUS", Data: "AQ=="}
	if err := tx.Validate(); err == nil {
		t.Fatal("expected error for malformed datr")
	}
}

func TestNewTxpkSize(t *testing.T) {
	phy := []byte{1, 2, 3, 4, 5}
	tx := NewTxpk(phy, 923.3, "SF10BW500", 1000, nil, true)
	if tx.Size != 5 {
		t.Fatalf("size = %d, want 5", tx.Size)
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
