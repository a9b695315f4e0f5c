package media

// G.711 mu-law companding for the audio wire format.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// EncodeMulaw compands a PCM frame to G.711 mu-law bytes.
func EncodeMulaw(frame []int16) []byte {
	out := make([]byte, len(frame))
	for i, s := range frame {
		out[i] = linearToMulaw(s)
	}
	return out
}

func linearToMulaw(sample int16) byte {
	s := int(sample)
	sign := 0
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias

	exponent := 7
	for mask := 0x4000; s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (s >> (exponent + 3)) & 0x0F

	return byte(^(sign | exponent<<4 | mantissa))
}
