package radio

import (
	"encoding/base64"
	"fmt"
	"regexp"
)

// Txpk is a downlink transmission instruction sent back to a gateway in a
// PULL_RESP body.
type Txpk struct {
	Imme bool    `json:"imme"`
	Tmst uint32  `json:"tmst"`
	Tmms *int64  `json:"tmms,omitempty"`
	Freq float64 `json:"freq"`
	Rfch int     `json:"rfch"`
	Powe int     `json:"powe"`
	Datr string  `json:"datr"`
	Modu string  `json:"modu"`
	Codr string  `json:"codr"`
	Ipol bool    `json:"ipol"`
	Size int     `json:"size"`
	Data string  `json:"data"`
}

var datrPattern = regexp.MustCompile(`^SF(7|8|9|10|11|12)BW(125|500)$`)

// Validate checks the Txpk invariants: exactly one of Imme or Tmst set,
// datr of the form SF{7..12}BW{125|500}, and that Data is base64.
func (t Txpk) Validate() error {
	if t.Imme && t.Tmst != 0 {
		return fmt.Errorf("radio: txpk has both imme and tmst set")
	}
	if !t.Imme && t.Tmst == 0 {
		return fmt.Errorf("radio: txpk must set imme or a nonzero tmst")
	}
	if !datrPattern.MatchString(t.Datr) {
		return fmt.Errorf("radio: txpk datr %q does not match SF{7..12}BW{125|500}", t.Datr)
	}
	if _, err := base64.StdEncoding.DecodeString(t.Data); err != nil {
		return fmt.Errorf("radio: txpk data is not valid base64: %w", err)
	}
	return nil
}

// NewTxpk builds a Txpk from an already-encoded PHY payload, computing
// Size from the decoded length.
func NewTxpk(phy []byte, freq float64, datr string, tmst uint32, tmms *int64, ipol bool) Txpk {
	return Txpk{
		Tmst: tmst,
		Tmms: tmms,
		Freq: freq,
		Rfch: 0,
		Powe: 14,
		Datr: datr,
		Modu: "LORA",
		Codr: "4/5",
		Ipol: ipol,
		Size: len(phy),
		Data: base64.StdEncoding.EncodeToString(phy),
	}
}

// DownlinkBody is the {"txpk": {...}} wrapper shape of a PULL_RESP
// payload. semtech.EncodePullResp builds the same shape with its own
// anonymous struct and does not use this type.
type DownlinkBody struct {
	Txpk Txpk `json:"txpk"`
}
