package usbomicron

// InputNames lists the device's physical inputs, index is the mux input id
// accepted by Session.SetChannel. It is carried over verbatim from the
// original firmware driver's inputNames table in omicronanalconn.cpp,
// including that table's own bug: a missing comma between "usb_pullup" and
// "usb_dn" in the original C string-literal array concatenates the two into
// one entry ("usb_pullupusb_dn"), so the table has 29 names, not the 30 a
// naive channel-pin count would suggest. Reproducing the bug rather than
// silently fixing it keeps this table's indices identical to the ids the
// physical firmware actually reports, which is the whole point of carrying
// it over (see DESIGN.md).
var InputNames = []string{
	"ch0", "ch1", "ch2", "ch3",
	"ch4", "ch5", "ch6", "ch7",
	"ch8", "ch9", "ch10", "ch11",
	"ch12", "ch13", "ch14", "ch15",
	"usb_tx_se0", "usb_tx_j", "usb_tx_en",
	"usb_rx_se0", "usb_rx_j", "usb_pullupusb_dn", "usb_dp",
	"spi_miso", "spi_mosi", "spi_clk", "spi_cs",
	"clk_24", "clk_33",
}

// DefaultInputs is the pair of inputs a freshly opened session assigns to
// its first two channels. The original driver's defaultInputs() carries a
// commented-out alternative ("assign ch0..ch15 to channels 0..15") that was
// never enabled; {20, 19} ("usb_rx_j", "usb_rx_se0") is what actually ships,
// so that is what this package reproduces rather than the dead alternative.
func DefaultInputs() []uint8 {
	return []uint8{20, 19}
}
