// Package usbomicron is the device session (C4): USB enumeration and
// interface claim, channel-multiplexer configuration, and the start/stop
// control transfers for the Omicron logic-analyzer hardware. It owns the
// device handle and the wire-protocol constants; the acquisition package
// drives the actual sample-read loop against the small Device interface a
// Session satisfies, so this package is the only one that imports gousb.
package usbomicron

import (
	"context"
	"fmt"

	"github.com/google/gousb"

	"github.com/avakar/lorris/internal/bitpack"
)

// Device limits, matching maxChannelCount()/maxFrequency() in
// omicronanalconn.cpp.
const (
	// MaxChannelCount is the device's fixed mux-slot count (maxChannelCount()).
	MaxChannelCount = bitpack.MaxMuxSlots

	// MaxFrequency is the device's fastest supported sample rate, in Hz
	// (maxFrequency()): the 100MHz base clock divided by 1.
	MaxFrequency = 100000000
)

// Control command codes: {bmRequestType, bRequest} pairs from
// omicronanalconn.cpp's static yb::usb_control_code_t table. CmdStart and
// CmdStop are used directly by Session; CmdSetRdAddr, CmdGetSampleIndex,
// CmdUnchoke and CmdMoveChoke are used by the acquisition package's read
// loop, which imports them from here since this package is the protocol's
// source of truth. CmdSetWrAddr and CmdGetConfig are defined but unused.
const (
	ReqTypeOut = uint8(0x41) // host-to-device, vendor, interface
	ReqTypeIn  = uint8(0xc1) // device-to-host, vendor, interface
)

const (
	CmdSetWrAddr      = uint8(0x01)
	CmdSetRdAddr      = uint8(0x02)
	CmdStart          = uint8(0x03)
	CmdStop           = uint8(0x04)
	CmdGetSampleIndex = uint8(0x05)
	CmdGetConfig      = uint8(0x06)
	CmdUnchoke        = uint8(0x07)
	CmdMoveChoke      = uint8(0x08)
)

// State is the session's connection lifecycle (§3.3/§9's "small trait"
// device model): a session starts Disconnected, becomes Connected once the
// USB interface is claimed, and toggles between Stopped and Running as
// StartTrace/StopTrace are called.
type State int

const (
	Disconnected State = iota
	Connected
	Stopped
	Running
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is one open connection to an Omicron analyzer device. It is not
// safe for concurrent use by more than one goroutine at a time; callers
// serialize StartTrace/StopTrace/SetChannel against the acquisition loop
// that reads from it.
type Session struct {
	ctx *gousb.Context
	dev *gousb.Device
	cfg *gousb.Config
	in_ *gousb.Interface

	inEP     *gousb.InEndpoint
	outEP    *gousb.OutEndpoint
	notifyEP *gousb.InEndpoint

	state State

	mux                 [bitpack.MaxMuxSlots]uint8
	channelCount        int
	roundedChannelCount int
	samplesPerSecond    float64
}

// Open enumerates USB devices for the first one matching vid/pid, claims its
// data interface, and returns a Connected Session. The caller must call
// Close when done.
func Open(vid, pid uint16) (*Session, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("usbomicron: open device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("usbomicron: no device with vid=%04x pid=%04x", vid, pid)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbomicron: claim config: %w", err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbomicron: claim interface: %w", err)
	}

	inEP, err := intf.InEndpoint(1)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbomicron: in endpoint: %w", err)
	}
	outEP, err := intf.OutEndpoint(2)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbomicron: out endpoint: %w", err)
	}
	notifyEP, err := intf.InEndpoint(3)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbomicron: notify endpoint: %w", err)
	}

	s := &Session{
		ctx: ctx, dev: dev, cfg: cfg, in_: intf,
		inEP: inEP, outEP: outEP, notifyEP: notifyEP,
		state: Connected,
	}
	for i := range s.mux {
		s.mux[i] = bitpack.DisabledInput
	}
	for i, input := range DefaultInputs() {
		if i >= len(s.mux) {
			break
		}
		s.mux[i] = input
	}
	return s, nil
}

// Close releases the USB interface and the underlying libusb context.
func (s *Session) Close() error {
	s.in_.Close()
	s.cfg.Close()
	err := s.dev.Close()
	s.ctx.Close()
	s.state = Disconnected
	return err
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// VID returns the device's USB vendor id, or 0 if not connected.
func (s *Session) VID() uint16 {
	if s.dev == nil {
		return 0
	}
	return uint16(s.dev.Desc.Vendor)
}

// PID returns the device's USB product id, or 0 if not connected.
func (s *Session) PID() uint16 {
	if s.dev == nil {
		return 0
	}
	return uint16(s.dev.Desc.Product)
}

// SerialNumber returns the device's USB serial number string, or "" on
// error (mirrors the original's serialNumber(), which also swallows
// lookup failures).
func (s *Session) SerialNumber() string {
	sn, err := s.dev.SerialNumber()
	if err != nil {
		return ""
	}
	return sn
}

// IntfName returns the claimed interface's string descriptor, falling back
// to "#<index>" when the device has none, matching the original's intfName.
func (s *Session) IntfName() string {
	name, err := s.dev.GetStringDescriptor(int(s.in_.Setting.Number))
	if err != nil || name == "" {
		return fmt.Sprintf("#%d", s.in_.Setting.Number)
	}
	return name
}

// Details returns a short human-readable identifier for the connected
// device, matching the original's details() ("SN <serial>").
func (s *Session) Details() string {
	return fmt.Sprintf("SN %s", s.SerialNumber())
}

// SetChannel assigns input to the given mux slot. slot must be <
// MaxChannelCount. Inputs above bitpack.DisabledInput are clamped, matching
// setChannel's (std::min)(input, 31).
func (s *Session) SetChannel(slot int, input uint8) {
	if slot < 0 || slot >= MaxChannelCount {
		return
	}
	if input > bitpack.DisabledInput {
		input = bitpack.DisabledInput
	}
	s.mux[slot] = input
}

// SetChannelCount disables every slot at index channels and above, matching
// setChannelCount's effect of trimming the trailing slots to "unassigned".
func (s *Session) SetChannelCount(channels int) {
	for ch := channels; ch < MaxChannelCount; ch++ {
		s.mux[ch] = bitpack.DisabledInput
	}
}

// activeChannelCount returns the count of leading mux slots that are not
// DisabledInput, matching startTrace's trailing-31 trim: channel_count
// counts down from 16 while the slot at channel_count-1 is disabled.
func (s *Session) activeChannelCount() int {
	n := MaxChannelCount
	for n > 0 && s.mux[n-1] == bitpack.DisabledInput {
		n--
	}
	return n
}

// StartTrace builds and sends the 18-byte start packet (§6.3) for the
// session's current mux assignment and freq (Hz), and transitions the
// session to Running. It returns the rounded channel count and mux the
// acquisition loop's Decoder needs to construct, since those values are
// only known once the trailing-disabled-slot trim has been applied.
func (s *Session) StartTrace(ctx context.Context, freq float64) (mux [bitpack.MaxMuxSlots]uint8, roundedChannelCount int, err error) {
	channelCount := s.activeChannelCount()
	if channelCount == 0 {
		return mux, 0, fmt.Errorf("usbomicron: no channels assigned")
	}

	rounded := bitpack.RoundedChannelCount(channelCount)
	logChannels := bitpack.Log2(rounded)

	word1, word2, word3 := bitpack.PackMux(s.mux)

	packet := make([]byte, 18)
	packet[0] = logChannels
	packet[1] = 0
	divisor := uint32(MaxFrequency/freq) - 1
	putLE32(packet[2:6], divisor)
	putLE32(packet[6:10], word1)
	putLE32(packet[10:14], word2)
	putLE32(packet[14:18], word3)

	if _, err := s.dev.Control(ReqTypeOut, CmdStart, 0, uint16(s.in_.Setting.Number), packet); err != nil {
		return mux, 0, fmt.Errorf("usbomicron: start control transfer: %w", err)
	}

	s.channelCount = channelCount
	s.roundedChannelCount = rounded
	s.samplesPerSecond = freq
	s.state = Running

	return s.mux, rounded, nil
}

// StopTrace sends the stop control transfer and transitions the session to
// Stopped. The caller is responsible for first canceling the acquisition
// loop that is reading from this session's endpoints (mirrors the
// original's stopTrace waiting on m_read_loop before issuing cmd_stop).
func (s *Session) StopTrace(ctx context.Context) error {
	if _, err := s.dev.Control(ReqTypeOut, CmdStop, 0, uint16(s.in_.Setting.Number), nil); err != nil {
		return fmt.Errorf("usbomicron: stop control transfer: %w", err)
	}
	s.state = Stopped
	return nil
}

// ControlWrite, ControlRead, and BulkRead implement the acquisition
// package's Device interface over this session's claimed interface and
// endpoints, so the acquisition loop never imports gousb directly.

func (s *Session) ControlWrite(ctx context.Context, reqType, request uint8, value, index uint16, data []byte) error {
	_, err := s.dev.Control(reqType, request, value, index, data)
	return err
}

func (s *Session) ControlRead(ctx context.Context, reqType, request uint8, value, index uint16, data []byte) (int, error) {
	return s.dev.Control(reqType, request, value, index, data)
}

func (s *Session) BulkRead(ctx context.Context, data []byte) (int, error) {
	return s.inEP.Read(data)
}

func putLE32(p []byte, v uint32) {
	p[0] = byte(v)
	p[1] = byte(v >> 8)
	p[2] = byte(v >> 16)
	p[3] = byte(v >> 24)
}
