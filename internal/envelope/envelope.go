// Package envelope builds the platform message envelope: a tagged union
// keyed by Type, with a Params shape that depends on it. This mirrors the
// {type, params} family described for the upstream platform, modeled here
// as one Go struct per variant (Uplink, DownlinkResponse, ErrorEnvelope),
// each carrying its own Type field, rather than an interface{} bag, so each
// variant has its own typed codec.
package envelope

// Type is the envelope's discriminant.
type Type string

const (
	TypeUplink           Type = "uplink"
	TypeDownlink         Type = "downlink"
	TypeDownlinkRequest  Type = "downlink_request"
	TypeDownlinkResponse Type = "downlink_response"
	TypeError            Type = "error"
)

// Meta is common envelope metadata. The fields that not every variant
// populates are tagged omitempty.
type Meta struct {
	Device     string `json:"device,omitempty"`
	DeviceAddr string `json:"device_addr"`
	Application string `json:"application,omitempty"`
	PacketHash string `json:"packet_hash"`
	PacketID   string `json:"packet_id,omitempty"`
	Gateway    string `json:"gateway,omitempty"`
	Time       int64  `json:"time"`
	Version    int    `json:"version"`
	Outdated   bool   `json:"outdated"`
	History    bool   `json:"history"`
	Network    string `json:"network,omitempty"`
}

// Hardware describes the receiving radio front-end.
type Hardware struct {
	Name string `json:"name,omitempty"`
}

// Modulation describes the LoRa modulation parameters derived from datr.
type Modulation struct {
	Kind       string `json:"kind"`
	Bandwidth  int    `json:"bandwidth"`
	Spreading  int    `json:"spreading"`
	CodingRate string `json:"coding_rate"`
}

// Radio is the radio-metadata block shared by uplink and downlink_response.
type Radio struct {
	Freq       float64    `json:"freq"`
	Datarate   string     `json:"datarate"`
	Time       int64      `json:"time"`
	Hardware   Hardware   `json:"hardware"`
	Modulation Modulation `json:"modulation"`
}

// LoraHeader carries the MAC-layer flags this core always reports false
// (no ADR, no class B, no confirmed frames are processed here).
type LoraHeader struct {
	ClassB     bool `json:"class_b"`
	Confirmed  bool `json:"confirmed"`
	ADR        bool `json:"adr"`
	ADRAckReq  bool `json:"adr_ack_req"`
	Ack        bool `json:"ack"`
	Version    int  `json:"version"`
	LoraType   int  `json:"lora_type"`
}

// Lora wraps LoraHeader with the (always empty, in this core) MAC command
// list.
type Lora struct {
	Header      LoraHeader    `json:"header"`
	MACCommands []interface{} `json:"mac_commands"`
}

// ParamsUplink is the params shape for an "uplink" envelope.
type ParamsUplink struct {
	Port              int    `json:"port"`
	RxTime            int64  `json:"rx_time"`
	CounterUp         uint32 `json:"counter_up"`
	Payload           string `json:"payload"`
	EncryptedPayload  string `json:"encrypted_payload"`
	Duplicate         bool   `json:"duplicate"`
	Radio             Radio  `json:"radio"`
	Lora              Lora   `json:"lora"`
}

// ParamsDownlinkResponse is the params shape for a "downlink_response"
// envelope: it mirrors the inbound request's counter_down/port/payload.
type ParamsDownlinkResponse struct {
	CounterDown uint32 `json:"counter_down"`
	Port        int    `json:"port"`
	Payload     string `json:"payload"`
}

// ParamsDownlinkRequest is the params shape of an inbound downlink request
// from the platform, parsed out of a Subscriber delivery.
type ParamsDownlinkRequest struct {
	DeviceAddr  string `json:"device_addr"`
	CounterDown uint32 `json:"counter_down"`
	Port        int    `json:"port"`
	Payload     string `json:"payload"`
	Confirmed   bool   `json:"confirmed"`
	MaxSize     int    `json:"max_size,omitempty"`
}

// ParamsError carries a human-readable failure reason.
type ParamsError struct {
	Reason string `json:"reason"`
}

// Uplink is the fully-typed "uplink" envelope.
type Uplink struct {
	Type   Type         `json:"type"`
	Meta   Meta         `json:"meta"`
	Params ParamsUplink `json:"params"`
}

// DownlinkResponse is the fully-typed "downlink_response" envelope.
type DownlinkResponse struct {
	Type   Type                   `json:"type"`
	Meta   Meta                   `json:"meta"`
	Params ParamsDownlinkResponse `json:"params"`
}

// ErrorEnvelope is the fully-typed "error" envelope.
type ErrorEnvelope struct {
	Type   Type        `json:"type"`
	Meta   Meta        `json:"meta"`
	Params ParamsError `json:"params"`
}
