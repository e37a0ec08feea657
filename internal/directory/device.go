// Package directory owns the in-memory device lookup cache: an
// atomically-swapped snapshot refreshed on a cadence and lazily filled on
// a per-address miss, backed by an HTTP device-catalog client.
package directory

import "github.com/lorawan-server/gateway-bridge/pkg/lorawan"

// Device is the immutable record the uplink pipeline needs to decrypt and
// attribute a frame. It lives from directory fetch until the cache
// replaces it wholesale on the next refresh.
type Device struct {
	DevEUI  lorawan.EUI64
	AppEUI  lorawan.EUI64
	DevAddr lorawan.DevAddr
	NwkSKey lorawan.AES128Key
	AppSKey lorawan.AES128Key
}
