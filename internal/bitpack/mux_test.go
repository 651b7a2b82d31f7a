package bitpack

import "testing"

func TestPackUnpackMuxRoundTrip(t *testing.T) {
	var mux [MaxMuxSlots]uint8
	for i := range mux {
		mux[i] = uint8(i * 2 % 30)
	}
	mux[5] = DisabledInput
	mux[15] = 0

	w1, w2, w3 := PackMux(mux)
	got := UnpackMux(w1, w2, w3)

	for i := range mux {
		if got[i] != mux[i] {
			t.Fatalf("slot %d = %d, want %d (mux=%v got=%v)", i, got[i], mux[i], mux, got)
		}
	}
}

func TestPackMuxClampsOutOfRangeInputs(t *testing.T) {
	var mux [MaxMuxSlots]uint8
	mux[0] = 200

	w1, w2, w3 := PackMux(mux)
	got := UnpackMux(w1, w2, w3)
	if got[0] != DisabledInput {
		t.Fatalf("slot 0 = %d, want clamped to %d", got[0], DisabledInput)
	}
}

func TestRoundedChannelCount(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {16, 16}, {9, 16},
	}
	for _, c := range cases {
		if got := RoundedChannelCount(c.n); got != c.want {
			t.Errorf("RoundedChannelCount(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestLog2(t *testing.T) {
	cases := []struct {
		n    int
		want uint8
	}{
		{1, 0}, {2, 1}, {4, 2}, {8, 3}, {16, 4},
	}
	for _, c := range cases {
		if got := Log2(c.n); got != c.want {
			t.Errorf("Log2(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}
