package stream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.klb.dev/spicebridge/internal/spice"
)

func heldMask(s *Stream) spice.ButtonMask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buttons
}

func TestMousePressReleaseRestoresMask(t *testing.T) {
	t.Parallel()

	s, sess := openTestStream(t, Config{})
	defer s.Close()
	in, _ := bindChannels(t, sess)

	before := heldMask(s)
	require.NoError(t, s.SendMouse(&MouseEvent{Type: MousePress, Button: ButtonLeft, X: 10, Y: 20}))
	require.NoError(t, s.SendMouse(&MouseEvent{Type: MouseRelease, Button: ButtonLeft, X: 10, Y: 20}))
	require.Equal(t, before, heldMask(s))

	ops := in.Ops()
	require.Len(t, ops, 4)

	// Press: position first (with the new mask), then the button press.
	require.Equal(t, "position", ops[0].Kind)
	require.Equal(t, spice.MaskLeft, ops[0].Held)
	require.Equal(t, "press", ops[1].Kind)
	require.Equal(t, spice.ButtonLeft, ops[1].Button)
	require.Equal(t, spice.MaskLeft, ops[1].Held)

	// Release: position and release still carry the pre-release mask.
	require.Equal(t, "position", ops[2].Kind)
	require.Equal(t, spice.MaskLeft, ops[2].Held)
	require.Equal(t, "release", ops[3].Kind)
	require.Equal(t, spice.MaskLeft, ops[3].Held)
}

func TestMouseTwoButtonsReleaseOne(t *testing.T) {
	t.Parallel()

	s, sess := openTestStream(t, Config{})
	defer s.Close()
	bindChannels(t, sess)

	require.NoError(t, s.SendMouse(&MouseEvent{Type: MousePress, Button: ButtonLeft}))
	require.NoError(t, s.SendMouse(&MouseEvent{Type: MousePress, Button: ButtonRight}))
	require.NoError(t, s.SendMouse(&MouseEvent{Type: MouseRelease, Button: ButtonLeft}))

	require.Equal(t, spice.MaskRight, heldMask(s))
}

func TestMouseMoveCarriesHeldMask(t *testing.T) {
	t.Parallel()

	s, sess := openTestStream(t, Config{})
	defer s.Close()
	in, _ := bindChannels(t, sess)

	require.NoError(t, s.SendMouse(&MouseEvent{Type: MousePress, Button: ButtonMiddle}))
	in.Reset()

	require.NoError(t, s.SendMouse(&MouseEvent{Type: MouseMove, X: 300, Y: 400}))

	ops := in.Ops()
	require.Len(t, ops, 1)
	require.Equal(t, "position", ops[0].Kind)
	require.Equal(t, 300, ops[0].X)
	require.Equal(t, 400, ops[0].Y)
	require.Equal(t, spice.MaskMiddle, ops[0].Held)
}

func TestScrollEmitsPressReleasePairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dx, dy  float64
		btn     spice.Button
		pairs   int
	}{
		{name: "up three", dy: 3, btn: spice.ButtonUp, pairs: 3},
		{name: "down two", dy: -2, btn: spice.ButtonDown, pairs: 2},
		{name: "fractional truncates", dy: 1.9, btn: spice.ButtonUp, pairs: 1},
		{name: "zero", dy: 0, pairs: 0},
		{name: "horizontal only", dx: 5, pairs: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, sess := openTestStream(t, Config{})
			defer s.Close()
			in, _ := bindChannels(t, sess)

			require.NoError(t, s.SendMouse(&MouseEvent{Type: MouseScroll, ScrollX: tc.dx, ScrollY: tc.dy}))

			ops := in.Ops()
			require.Len(t, ops, tc.pairs*2)
			for i := 0; i < tc.pairs; i++ {
				require.Equal(t, "press", ops[2*i].Kind)
				require.Equal(t, tc.btn, ops[2*i].Button)
				require.Equal(t, "release", ops[2*i+1].Kind)
				require.Equal(t, tc.btn, ops[2*i+1].Button)
			}
		})
	}
}

func TestExtraButtonsMapToScrollSteps(t *testing.T) {
	t.Parallel()

	s, sess := openTestStream(t, Config{})
	defer s.Close()
	in, _ := bindChannels(t, sess)

	require.NoError(t, s.SendMouse(&MouseEvent{Type: MousePress, Button: ButtonExtra1}))
	require.NoError(t, s.SendMouse(&MouseEvent{Type: MouseRelease, Button: ButtonExtra1}))

	ops := in.Ops()
	require.Len(t, ops, 4)
	require.Equal(t, spice.ButtonUp, ops[1].Button)
	require.Equal(t, spice.ButtonUp, ops[3].Button)
	require.Zero(t, heldMask(s))
}

func TestSendMouseGuards(t *testing.T) {
	t.Parallel()

	var nilStream *Stream
	require.ErrorIs(t, nilStream.SendMouse(&MouseEvent{}), ErrNilStream)

	s, sess := openTestStream(t, Config{})
	defer s.Close()

	require.ErrorIs(t, s.SendMouse(nil), ErrNilEvent)

	// No inputs channel bound yet.
	require.ErrorIs(t, s.SendMouse(&MouseEvent{Type: MouseMove}), ErrNoInputsChannel)

	in, _ := bindChannels(t, sess)
	require.ErrorIs(t, s.SendMouse(&MouseEvent{Type: MouseEventType(99)}), ErrUnknownEvent)
	require.Empty(t, in.Ops())
}

func TestKeyboardScanCodes(t *testing.T) {
	t.Parallel()

	s, sess := openTestStream(t, Config{})
	defer s.Close()
	in, _ := bindChannels(t, sess)

	// Hardware scan code wins.
	require.NoError(t, s.SendKeyboard(&KeyboardEvent{Type: KeyDown, ScanCode: 0x1e, KeyCode: 0x41}))
	// Virtual key code is the fallback when the scan code is absent.
	require.NoError(t, s.SendKeyboard(&KeyboardEvent{Type: KeyDown, KeyCode: 0x41}))
	// Extended keys carry bit 8.
	require.NoError(t, s.SendKeyboard(&KeyboardEvent{Type: KeyDown, ScanCode: 0x1d, Extended: true}))
	require.NoError(t, s.SendKeyboard(&KeyboardEvent{Type: KeyUp, ScanCode: 0x1d, Extended: true}))

	ops := in.Ops()
	require.Len(t, ops, 4)
	require.Equal(t, "key-press", ops[0].Kind)
	require.Equal(t, uint32(0x1e), ops[0].Scancode)
	require.Equal(t, uint32(0x41), ops[1].Scancode)
	require.Equal(t, uint32(0x11d), ops[2].Scancode)
	require.Equal(t, "key-release", ops[3].Kind)
	require.Equal(t, uint32(0x11d), ops[3].Scancode)
}

func TestSendKeyboardGuards(t *testing.T) {
	t.Parallel()

	var nilStream *Stream
	require.ErrorIs(t, nilStream.SendKeyboard(&KeyboardEvent{}), ErrNilStream)

	s, sess := openTestStream(t, Config{})
	defer s.Close()

	require.ErrorIs(t, s.SendKeyboard(nil), ErrNilEvent)
	require.ErrorIs(t, s.SendKeyboard(&KeyboardEvent{Type: KeyDown}), ErrNoInputsChannel)

	in, _ := bindChannels(t, sess)
	require.ErrorIs(t, s.SendKeyboard(&KeyboardEvent{Type: KeyEventType(5)}), ErrUnknownEvent)
	require.Empty(t, in.Ops())
}
