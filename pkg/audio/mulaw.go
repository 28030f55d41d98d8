package audio

// G.711 μ-law codec. The telephone leg carries 8-bit μ-law samples; the
// acoustic services consume 16-bit little-endian PCM. Both directions are
// table-free closed-form implementations of the ITU-T G.711 companding law.

const (
	mulawBias = 0x84 // 132, added before compression
	mulawClip = 32635
)

// DecodeMulaw expands μ-law bytes into 16-bit little-endian PCM at the same
// sample rate. The output is 2× the input length.
func DecodeMulaw(in []byte) []byte {
	out := make([]byte, len(in)*2)
	for i, b := range in {
		s := decodeMulawSample(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// DecodeMulawGain expands μ-law bytes into 16-bit PCM applying a linear gain
// factor, clamped to the int16 range. gain = 1.0 is equivalent to DecodeMulaw.
// The segmenter uses a modest boost before VAD classification, matching the
// level normalisation the telephony path otherwise loses.
func DecodeMulawGain(in []byte, gain float64) []byte {
	if gain == 1.0 {
		return DecodeMulaw(in)
	}
	out := make([]byte, len(in)*2)
	for i, b := range in {
		v := float64(decodeMulawSample(b)) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		s := int16(v)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// EncodeMulaw compresses 16-bit little-endian PCM into μ-law bytes.
// The output is half the input length; a trailing odd byte is ignored.
func EncodeMulaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = encodeMulawSample(s)
	}
	return out
}

func decodeMulawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	sample := (int16(mantissa)<<3 + mulawBias) << exponent
	sample -= mulawBias
	if sign != 0 {
		return -sample
	}
	return sample
}

func encodeMulawSample(s int16) byte {
	var sign byte
	v := int32(s)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); mask != 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(v>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}
