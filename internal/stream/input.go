package stream

import "go.klb.dev/spicebridge/internal/spice"

// extendedBit is OR'd into the scan code of extended keys, matching the
// protocol's encoding of the 0xE0 prefix.
const extendedBit = 0x100

// buttonToSpice maps a local button to its protocol button number. The two
// extra buttons reuse the scroll-step buttons.
func buttonToSpice(b MouseButton) spice.Button {
	switch b {
	case ButtonLeft:
		return spice.ButtonLeft
	case ButtonRight:
		return spice.ButtonRight
	case ButtonMiddle:
		return spice.ButtonMiddle
	case ButtonExtra1:
		return spice.ButtonUp
	case ButtonExtra2:
		return spice.ButtonDown
	default:
		return 0
	}
}

// buttonToMask maps a local button to its held-state mask bit.
func buttonToMask(b MouseButton) spice.ButtonMask {
	switch b {
	case ButtonLeft:
		return spice.MaskLeft
	case ButtonRight:
		return spice.MaskRight
	case ButtonMiddle:
		return spice.MaskMiddle
	case ButtonExtra1:
		return spice.MaskUp
	case ButtonExtra2:
		return spice.MaskDown
	default:
		return 0
	}
}

// SendMouse translates one pointer event into inputs-channel operations.
// It fails with ErrNoInputsChannel until the listener has bound the inputs
// channel, which is a normal transient condition during connection setup.
func (s *Stream) SendMouse(ev *MouseEvent) error {
	if s == nil {
		return ErrNilStream
	}
	if ev == nil {
		return ErrNilEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.inputs
	if in == nil {
		return ErrNoInputsChannel
	}

	x, y := int(ev.X), int(ev.Y)

	switch ev.Type {
	case MouseMove:
		in.Position(x, y, 0, s.buttons)

	case MousePress:
		b := buttonToSpice(ev.Button)
		mask := buttonToMask(ev.Button)
		s.buttons |= mask
		// Position first so the guest cursor is co-located before the
		// press is interpreted.
		in.Position(x, y, 0, s.buttons)
		in.ButtonPress(b, s.buttons)

	case MouseRelease:
		b := buttonToSpice(ev.Button)
		mask := buttonToMask(ev.Button)
		in.Position(x, y, 0, s.buttons)
		in.ButtonRelease(b, s.buttons)
		s.buttons &^= mask

	case MouseScroll:
		// Scroll is emulated as repeated press/release pairs of the
		// scroll-step buttons, one pair per wheel step. There is no
		// horizontal primitive; ScrollX is accepted but has no effect.
		steps := int(ev.ScrollY)
		btn := spice.ButtonUp
		if steps < 0 {
			btn = spice.ButtonDown
			steps = -steps
		}
		for i := 0; i < steps; i++ {
			in.ButtonPress(btn, s.buttons)
			in.ButtonRelease(btn, s.buttons)
		}

	default:
		return ErrUnknownEvent
	}
	return nil
}

// SendKeyboard translates one key event into a key press or release. The
// hardware scan code is used when present; the virtual key code is a
// lower-fidelity fallback for sources that don't report scan codes.
func (s *Stream) SendKeyboard(ev *KeyboardEvent) error {
	if s == nil {
		return ErrNilStream
	}
	if ev == nil {
		return ErrNilEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.inputs
	if in == nil {
		return ErrNoInputsChannel
	}

	code := ev.ScanCode
	if code == 0 {
		code = ev.KeyCode
	}
	if ev.Extended {
		code |= extendedBit
	}

	switch ev.Type {
	case KeyDown:
		in.KeyPress(code)
	case KeyUp:
		in.KeyRelease(code)
	default:
		return ErrUnknownEvent
	}
	return nil
}
