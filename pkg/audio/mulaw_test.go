package audio

import (
	"math"
	"testing"
	"time"
)

func TestMulawSilence(t *testing.T) {
	t.Parallel()

	// 0xFF is the μ-law code for digital zero.
	pcm := DecodeMulaw([]byte{0xFF})
	if got := int16(pcm[0]) | int16(pcm[1])<<8; got != 0 {
		t.Fatalf("decode(0xFF) = %d, want 0", got)
	}
	if got := EncodeMulaw([]byte{0, 0}); got[0] != 0xFF {
		t.Fatalf("encode(0) = %#x, want 0xff", got[0])
	}
}

func TestMulawRoundTrip(t *testing.T) {
	t.Parallel()

	// μ-law is lossy: a round trip must stay within the quantisation step
	// of the sample's magnitude segment (~3% of full scale at the top end).
	for _, want := range []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, 30000, -30000} {
		pcm := []byte{byte(want), byte(want >> 8)}
		back := DecodeMulaw(EncodeMulaw(pcm))
		got := int16(back[0]) | int16(back[1])<<8

		diff := math.Abs(float64(got) - float64(want))
		tolerance := math.Max(16, math.Abs(float64(want))*0.07)
		if diff > tolerance {
			t.Errorf("round trip %d → %d (diff %.0f > %.0f)", want, got, diff, tolerance)
		}
	}
}

func TestMulawRoundTripPreservesSign(t *testing.T) {
	t.Parallel()

	for s := int16(-32000); s < 32000; s += 997 {
		pcm := []byte{byte(s), byte(s >> 8)}
		back := DecodeMulaw(EncodeMulaw(pcm))
		got := int16(back[0]) | int16(back[1])<<8
		if s > 100 && got <= 0 {
			t.Fatalf("sample %d decoded to %d, sign lost", s, got)
		}
		if s < -100 && got >= 0 {
			t.Fatalf("sample %d decoded to %d, sign lost", s, got)
		}
	}
}

func TestDecodeMulawGain(t *testing.T) {
	t.Parallel()

	in := EncodeMulaw([]byte{0xE8, 0x03}) // 1000

	plain := DecodeMulaw(in)
	boosted := DecodeMulawGain(in, 4.0)

	p := int16(plain[0]) | int16(plain[1])<<8
	b := int16(boosted[0]) | int16(boosted[1])<<8
	if b < p*3 || b > p*5 {
		t.Fatalf("gain 4.0: %d → %d, want ~4x", p, b)
	}

	// Gain must clamp, not wrap.
	loud := EncodeMulaw([]byte{0x00, 0x7D}) // 32000
	clamped := DecodeMulawGain(loud, 10.0)
	c := int16(clamped[0]) | int16(clamped[1])<<8
	if c != 32767 {
		t.Fatalf("gain clamp: got %d, want 32767", c)
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	t.Run("same rate is identity", func(t *testing.T) {
		t.Parallel()
		in := []byte{1, 2, 3, 4}
		if got := ResampleMono16(in, 8000, 8000); &got[0] != &in[0] {
			t.Fatal("expected input returned unchanged")
		}
	})

	t.Run("8k to 16k doubles sample count", func(t *testing.T) {
		t.Parallel()
		in := make([]byte, FrameBytes*2) // one decoded frame
		out := ResampleMono16(in, SampleRate, WideSampleRate)
		if len(out) != len(in)*2 {
			t.Fatalf("got %d bytes, want %d", len(out), len(in)*2)
		}
	})

	t.Run("constant value survives", func(t *testing.T) {
		t.Parallel()
		in := make([]byte, 64)
		for i := 0; i < len(in); i += 2 {
			in[i] = 0xE8
			in[i+1] = 0x03 // 1000
		}
		out := ResampleMono16(in, 16000, 8000)
		for i := 0; i+1 < len(out); i += 2 {
			if got := int16(out[i]) | int16(out[i+1])<<8; got != 1000 {
				t.Fatalf("sample %d = %d, want 1000", i/2, got)
			}
		}
	})
}

func TestPlaybackDuration(t *testing.T) {
	t.Parallel()

	if got := PlaybackDuration(FrameBytes); got != FrameDuration {
		t.Fatalf("one frame = %v, want %v", got, FrameDuration)
	}
	if got := PlaybackDuration(8000); got != time.Second {
		t.Fatalf("8000 bytes = %v, want 1s", got)
	}
}
