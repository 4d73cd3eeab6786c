package rcon

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncode_ExampleFrame(t *testing.T) {
	frame := Encode(&Packet{Type: TypeExecCommand, ID: 30, Body: "help"})

	want := []byte{
		14, 0, 0, 0, // size = totalLength - 4
		30, 0, 0, 0, // id
		2, 0, 0, 0, // type
		'h', 'e', 'l', 'p',
		0, 0, // terminator
	}

	if len(frame) != 18 {
		t.Fatalf("frame length = %d, want 18", len(frame))
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %v, want %v", frame, want)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	packets := []Packet{
		{Type: TypeResponse, ID: 0, Body: ""},
		{Type: TypeExecCommand, ID: 30, Body: "help"},
		{Type: TypeAuth, ID: AuthID, Body: "hunter2"},
		{Type: TypeAuthFailed, ID: AuthFailedID, Body: ""},
		{Type: TypeResponse, ID: 2147483647, Body: "players online: 3"},
		{Type: TypeExecCommand, ID: -42, Body: "say 'hello world'"},
	}

	for _, want := range packets {
		frame := Encode(&want)

		got, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode(%v) failed: %v", want, err)
		}
		if *got != want {
			t.Errorf("round trip = %+v, want %+v", *got, want)
		}
	}
}

func TestEncode_SizeInvariant(t *testing.T) {
	bodies := []string{"", "a", "help", "a longer console command with spaces"}

	for _, body := range bodies {
		pkt := &Packet{Type: TypeExecCommand, ID: 1, Body: body}
		frame := Encode(pkt)

		if len(frame) != len(body)+14 {
			t.Errorf("wire length = %d, want %d", len(frame), len(body)+14)
		}
		if int(pkt.Size()) != len(frame)-4 {
			t.Errorf("size = %d, want wireLength-4 = %d", pkt.Size(), len(frame)-4)
		}
	}
}

func TestDecode_Truncated(t *testing.T) {
	full := Encode(&Packet{Type: TypeResponse, ID: 1, Body: ""})

	for n := 0; n < MinFrameSize; n++ {
		_, err := Decode(full[:n])
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("Decode of %d bytes: err = %v, want ErrMalformedFrame", n, err)
		}
	}
}

func TestDecode_SizeMismatch(t *testing.T) {
	frame := Encode(&Packet{Type: TypeResponse, ID: 1, Body: "body"})
	frame[0] = 99 // size field now disagrees with the frame length

	if _, err := Decode(frame); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestReadFrame(t *testing.T) {
	first := Encode(&Packet{Type: TypeResponse, ID: 1, Body: "one"})
	second := Encode(&Packet{Type: TypeResponse, ID: 2, Body: "two"})

	r := bytes.NewReader(append(append([]byte{}, first...), second...))

	got, err := ReadFrame(r, defaultMaxFrameSize)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("first frame = %v, want %v", got, first)
	}

	got, err = ReadFrame(r, defaultMaxFrameSize)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Errorf("second frame = %v, want %v", got, second)
	}
}

func TestReadFrame_SplitAcrossWrites(t *testing.T) {
	frame := Encode(&Packet{Type: TypeResponse, ID: 9, Body: "fragmented arrival"})

	pr, pw := io.Pipe()
	go func() {
		for _, b := range frame {
			pw.Write([]byte{b})
		}
		pw.Close()
	}()

	got, err := ReadFrame(pr, defaultMaxFrameSize)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("frame = %v, want %v", got, frame)
	}
}

func TestReadFrame_DeclaredSizeBelowMinimum(t *testing.T) {
	// size field says 5, below the 10 bytes of header overhead
	r := bytes.NewReader([]byte{5, 0, 0, 0, 1, 2, 3, 4, 5})

	if _, err := ReadFrame(r, defaultMaxFrameSize); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestReadFrame_TooLarge(t *testing.T) {
	frame := Encode(&Packet{Type: TypeResponse, ID: 1, Body: "0123456789abcdef"})

	if _, err := ReadFrame(bytes.NewReader(frame), 20); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestResolvePacket(t *testing.T) {
	pkt := &Packet{Type: TypeResponse, ID: 5, Body: "already decoded"}

	got, err := ResolvePacket(pkt, nil)
	if err != nil || got != pkt {
		t.Errorf("ResolvePacket(pkt, nil) = %v, %v, want the packet back", got, err)
	}

	frame := Encode(pkt)
	got, err = ResolvePacket(nil, frame)
	if err != nil {
		t.Fatalf("ResolvePacket(nil, frame) failed: %v", err)
	}
	if *got != *pkt {
		t.Errorf("decoded = %+v, want %+v", *got, *pkt)
	}

	if _, err = ResolvePacket(nil, nil); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("ResolvePacket(nil, nil): err = %v, want ErrMalformedFrame", err)
	}
}

func TestResolveFrame(t *testing.T) {
	pkt := &Packet{Type: TypeExecCommand, ID: 5, Body: "list"}
	raw := Encode(pkt)

	got, err := ResolveFrame(nil, raw)
	if err != nil || !bytes.Equal(got, raw) {
		t.Errorf("ResolveFrame(nil, raw) = %v, %v, want the frame back", got, err)
	}

	got, err = ResolveFrame(pkt, nil)
	if err != nil {
		t.Fatalf("ResolveFrame(pkt, nil) failed: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("encoded = %v, want %v", got, raw)
	}

	if _, err = ResolveFrame(nil, nil); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("ResolveFrame(nil, nil): err = %v, want ErrMalformedFrame", err)
	}
}
