package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lorawan-server/gateway-bridge/pkg/lorawan"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable wraps any transport or non-2xx failure talking to the
// device catalog; callers treat it as non-fatal and keep the previous
// cache snapshot.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string { return fmt.Sprintf("directory: unavailable: %v", e.Err) }
func (e *ErrUnavailable) Unwrap() error { return e.Err }

// deviceRecord is the wire shape returned by the catalog service.
type deviceRecord struct {
	DevEUI  string `json:"dev_eui"`
	AppEUI  string `json:"app_eui"`
	DevAddr string `json:"dev_addr"`
	NwkSKey string `json:"nwk_skey"`
	AppSKey string `json:"app_skey"`
}

// HTTPDirectory fetches devices from an HTTP device-catalog service.
type HTTPDirectory struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPDirectory builds a client with a bounded per-request timeout.
func NewHTTPDirectory(baseURL, token string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
	}
}

// GetBy implements the DeviceDirectory capability: nil/nil returns the
// full directory; a column/value pair filters to a single device (the
// only column this bridge queries by is "dev_addr").
func (d *HTTPDirectory) GetBy(ctx context.Context, column, value *string) (map[string]Device, error) {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, &ErrUnavailable{Err: err}
	}
	if column != nil && value != nil {
		q := u.Query()
		q.Set(*column, *value)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &ErrUnavailable{Err: err}
	}
	if d.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.Token)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, &ErrUnavailable{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ErrUnavailable{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var records []deviceRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, &ErrUnavailable{Err: err}
	}

	out := make(map[string]Device, len(records))
	for _, r := range records {
		dev, err := toDevice(r)
		if err != nil {
			log.Warn().Err(err).Str("dev_addr", r.DevAddr).Msg("directory: skipping malformed device record")
			continue
		}
		out[dev.DevAddr.String()] = dev
	}
	return out, nil
}

func toDevice(r deviceRecord) (Device, error) {
	var dev Device
	var err error

	dev.DevAddr, err = lorawan.ParseDevAddr(r.DevAddr)
	if err != nil {
		return dev, err
	}
	dev.NwkSKey, err = lorawan.ParseAES128Key(r.NwkSKey)
	if err != nil {
		return dev, err
	}
	dev.AppSKey, err = lorawan.ParseAES128Key(r.AppSKey)
	if err != nil {
		return dev, err
	}
	return dev, nil
}
