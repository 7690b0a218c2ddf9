package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/efficientgo/core/errors"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/ardnew/dwc2hcd/host"
	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/sim"
)

// Scenario describes a simulated controller, the device attached to it, and
// the transfers to run once the device is enumerated.
type Scenario struct {
	Controller ControllerSpec `yaml:"controller" toml:"controller"`
	Device     DeviceSpec     `yaml:"device" toml:"device"`
	Transfers  []TransferSpec `yaml:"transfers" toml:"transfers"`

	// Disconnect detaches the device after the last transfer.
	Disconnect bool `yaml:"disconnect,omitempty" toml:"disconnect,omitempty"`
}

// ControllerSpec configures the simulated DWC2 core. Zero fields take the
// simulator's defaults.
type ControllerSpec struct {
	Channels      int    `yaml:"channels,omitempty" toml:"channels,omitempty"`
	FullSpeedOnly bool   `yaml:"fullSpeedOnly,omitempty" toml:"fullSpeedOnly,omitempty"`
	NPTxFIFOWords uint16 `yaml:"npTxFifoWords,omitempty" toml:"npTxFifoWords,omitempty"`
	PTxFIFOWords  uint16 `yaml:"pTxFifoWords,omitempty" toml:"pTxFifoWords,omitempty"`
	NPQueue       uint8  `yaml:"npQueue,omitempty" toml:"npQueue,omitempty"`
	PQueue        uint8  `yaml:"pQueue,omitempty" toml:"pQueue,omitempty"`
}

// DeviceSpec describes the simulated device.
type DeviceSpec struct {
	Speed          string         `yaml:"speed" toml:"speed"`
	VendorID       uint16         `yaml:"vendorId" toml:"vendorId"`
	ProductID      uint16         `yaml:"productId" toml:"productId"`
	Class          uint8          `yaml:"class,omitempty" toml:"class,omitempty"`
	MaxPacketSize0 uint8          `yaml:"maxPacketSize0,omitempty" toml:"maxPacketSize0,omitempty"`
	Endpoints      []EndpointSpec `yaml:"endpoints" toml:"endpoints"`
}

// EndpointSpec describes one endpoint of the device's configuration.
type EndpointSpec struct {
	Address       uint8  `yaml:"address" toml:"address"`
	Type          string `yaml:"type" toml:"type"`
	MaxPacketSize uint16 `yaml:"maxPacketSize" toml:"maxPacketSize"`
	Interval      uint8  `yaml:"interval,omitempty" toml:"interval,omitempty"`

	// Stall makes the endpoint answer every token with STALL.
	Stall bool `yaml:"stall,omitempty" toml:"stall,omitempty"`
}

// TransferSpec is one transfer run against the enumerated device. OUT
// transfers send Data; IN transfers read Length bytes and, when Expect is
// set, compare them with it.
type TransferSpec struct {
	Endpoint    uint8  `yaml:"endpoint" toml:"endpoint"`
	Data        string `yaml:"data,omitempty" toml:"data,omitempty"`
	Length      int    `yaml:"length,omitempty" toml:"length,omitempty"`
	Expect      string `yaml:"expect,omitempty" toml:"expect,omitempty"`
	ExpectError string `yaml:"expectError,omitempty" toml:"expectError,omitempty"`
	Repeat      int    `yaml:"repeat,omitempty" toml:"repeat,omitempty"`
	Timeout     string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
}

// Expected transfer failures.
const (
	expectStall   = "stall"
	expectTimeout = "timeout"
	expectFailed  = "failed"
)

// LoadScenario reads a scenario from a YAML or TOML file, chosen by its
// extension.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}

	var sc Scenario
	switch format := formatOf(path); format {
	case "yaml":
		err = yaml.Unmarshal(data, &sc)
	case "toml":
		err = toml.Unmarshal(data, &sc)
	default:
		return nil, errors.Newf("scenario %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse scenario %s", path)
	}
	if err := sc.Validate(); err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	return &sc, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return ""
	}
}

// Validate checks the scenario for values the simulator cannot represent.
func (s *Scenario) Validate() error {
	if _, err := parseSpeed(s.Device.Speed); err != nil {
		return err
	}
	seen := make(map[uint8]bool)
	for _, ep := range s.Device.Endpoints {
		if ep.Address&0x0F == 0 {
			return errors.Newf("endpoint %#02x: endpoint 0 is implicit", ep.Address)
		}
		if seen[ep.Address] {
			return errors.Newf("endpoint %#02x: duplicate", ep.Address)
		}
		seen[ep.Address] = true
		if _, err := parseTransferType(ep.Type); err != nil {
			return errors.Wrapf(err, "endpoint %#02x", ep.Address)
		}
		if ep.MaxPacketSize == 0 {
			return errors.Newf("endpoint %#02x: maxPacketSize must be positive", ep.Address)
		}
	}
	for i, t := range s.Transfers {
		if !seen[t.Endpoint] {
			return errors.Newf("transfer %d: endpoint %#02x is not in the configuration", i, t.Endpoint)
		}
		switch t.ExpectError {
		case "", expectStall, expectTimeout, expectFailed:
		default:
			return errors.Newf("transfer %d: unknown expectError %q", i, t.ExpectError)
		}
		if _, err := t.timeout(time.Second); err != nil {
			return errors.Wrapf(err, "transfer %d", i)
		}
	}
	return nil
}

// SimConfig returns the simulated controller configuration.
func (s *Scenario) SimConfig() sim.Config {
	cfg := sim.DefaultConfig()
	c := s.Controller
	if c.Channels > 0 {
		cfg.Channels = c.Channels
	}
	if c.FullSpeedOnly {
		cfg.HighSpeed = false
	}
	if c.NPTxFIFOWords > 0 {
		cfg.NPTxFIFOWords = c.NPTxFIFOWords
	}
	if c.PTxFIFOWords > 0 {
		cfg.PTxFIFOWords = c.PTxFIFOWords
	}
	if c.NPQueue > 0 {
		cfg.NPQueue = c.NPQueue
	}
	if c.PQueue > 0 {
		cfg.PQueue = c.PQueue
	}
	return cfg
}

// Descriptors returns the device descriptor and configuration descriptor set
// the simulated device reports.
func (d *DeviceSpec) Descriptors() (device, config []byte, err error) {
	speed, err := parseSpeed(d.Speed)
	if err != nil {
		return nil, nil, err
	}
	mps0 := d.MaxPacketSize0
	if mps0 == 0 {
		mps0 = 64
		if speed == hal.SpeedLow {
			mps0 = 8
		}
	}

	dd := host.DeviceDescriptor{
		USBVersion:        0x0200,
		DeviceClass:       d.Class,
		MaxPacketSize0:    mps0,
		VendorID:          d.VendorID,
		ProductID:         d.ProductID,
		NumConfigurations: 1,
	}
	device = make([]byte, host.DeviceDescriptorSize)
	dd.MarshalTo(device)

	cfg := host.Configuration{
		ConfigurationDescriptor: host.ConfigurationDescriptor{
			ConfigurationValue: 1,
			Attributes:         0x80,
			MaxPower:           50,
		},
		Interfaces: []host.InterfaceDescriptor{{
			NumEndpoints:   uint8(len(d.Endpoints)),
			InterfaceClass: d.Class,
		}},
	}
	for _, ep := range d.Endpoints {
		typ, err := parseTransferType(ep.Type)
		if err != nil {
			return nil, nil, err
		}
		cfg.Endpoints = append(cfg.Endpoints, host.EndpointDescriptor{
			EndpointAddress: ep.Address,
			Attributes:      uint8(typ),
			MaxPacketSize:   ep.MaxPacketSize,
			Interval:        ep.Interval,
		})
	}
	config, err = cfg.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return device, config, nil
}

// Payload returns the bytes an OUT transfer sends, or the buffer an IN
// transfer fills.
func (t *TransferSpec) Payload() []byte {
	if t.Endpoint&0x80 == 0 {
		return []byte(t.Data)
	}
	n := t.Length
	if n == 0 {
		n = len(t.Expect)
	}
	return make([]byte, n)
}

func (t *TransferSpec) timeout(def time.Duration) (time.Duration, error) {
	if t.Timeout == "" {
		return def, nil
	}
	d, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return 0, errors.Wrapf(err, "timeout %q", t.Timeout)
	}
	return d, nil
}

func parseSpeed(s string) (hal.Speed, error) {
	switch strings.ToLower(s) {
	case "low":
		return hal.SpeedLow, nil
	case "full":
		return hal.SpeedFull, nil
	case "", "high":
		return hal.SpeedHigh, nil
	default:
		return hal.SpeedUnknown, errors.Newf("unknown speed %q", s)
	}
}

func parseTransferType(s string) (hal.TransferType, error) {
	switch strings.ToLower(s) {
	case "control":
		return hal.TransferControl, nil
	case "isochronous", "iso":
		return hal.TransferIsochronous, nil
	case "bulk":
		return hal.TransferBulk, nil
	case "interrupt":
		return hal.TransferInterrupt, nil
	default:
		return 0, errors.Newf("unknown transfer type %q", s)
	}
}

// SampleScenario returns the scenario written by the init command: a bulk
// loopback device with an interrupt endpoint that never has data.
func SampleScenario() *Scenario {
	return &Scenario{
		Device: DeviceSpec{
			Speed:     "high",
			VendorID:  0x1209,
			ProductID: 0x0001,
			Class:     0xFF,
			Endpoints: []EndpointSpec{
				{Address: 0x02, Type: "bulk", MaxPacketSize: 512},
				{Address: 0x82, Type: "bulk", MaxPacketSize: 512},
				{Address: 0x83, Type: "interrupt", MaxPacketSize: 8, Interval: 4},
			},
		},
		Transfers: []TransferSpec{
			{Endpoint: 0x02, Data: "hello, device"},
			{Endpoint: 0x82, Expect: "hello, device"},
			{Endpoint: 0x83, Length: 8, ExpectError: expectTimeout, Timeout: "50ms"},
		},
		Disconnect: true,
	}
}
