package amp

import "math"

// Float16 represents an IEEE 754 half-precision value.
type Float16 uint16

// Float32ToFloat16 converts float32 to float16
func Float32ToFloat16(f float32) Float16 {
	bits := math.Float32bits(f)

	sign := (bits >> 31) & 0x1
	exp := (bits >> 23) & 0xFF
	mantissa := bits & 0x7FFFFF

	if exp == 0 {
		// Zero or subnormal
		return Float16(sign << 15)
	} else if exp == 0xFF {
		// Infinity or NaN
		if mantissa == 0 {
			return Float16((sign << 15) | 0x7C00)
		}
		return Float16((sign << 15) | 0x7C00 | (mantissa >> 13))
	}

	// Adjust exponent for float16 bias (15 vs 127)
	expAdjusted := int32(exp) - 127 + 15

	if expAdjusted >= 31 {
		// Overflow to infinity
		return Float16((sign << 15) | 0x7C00)
	} else if expAdjusted <= 0 {
		// Underflow to zero or subnormal
		if expAdjusted < -10 {
			return Float16(sign << 15)
		}
		shiftAmount := 1 - expAdjusted
		if shiftAmount > 0 {
			mantissa = (mantissa | 0x800000) >> uint32(shiftAmount)
		}
		return Float16((sign << 15) | (mantissa >> 13))
	}

	return Float16((sign << 15) | (uint32(expAdjusted) << 10) | (mantissa >> 13))
}

// Float16ToFloat32 converts float16 to float32
func Float16ToFloat32(h Float16) float32 {
	bits := uint32(h)

	sign := (bits >> 15) & 0x1
	exp := (bits >> 10) & 0x1F
	mantissa := bits & 0x3FF

	var result uint32

	if exp == 0 {
		if mantissa == 0 {
			// Zero
			result = sign << 31
		} else {
			// Subnormal: normalize the mantissa
			e := int32(0)
			for (mantissa & 0x400) == 0 {
				mantissa <<= 1
				e--
			}
			mantissa &= 0x3FF
			exp32 := uint32(int32(127-15+1) + e)
			result = (sign << 31) | (exp32 << 23) | (mantissa << 13)
		}
	} else if exp == 31 {
		// Infinity or NaN
		result = (sign << 31) | 0x7F800000 | (mantissa << 13)
	} else {
		exp32 := exp - 15 + 127
		result = (sign << 31) | (exp32 << 23) | (mantissa << 13)
	}

	return math.Float32frombits(result)
}

// Float8 represents an E4M3 8-bit floating point value (4 exponent bits,
// 3 mantissa bits, bias 7). The format used for gradient storage at the
// most aggressive optimization level.
type Float8 uint8

const (
	float8MaxNormal = 448.0 // largest finite E4M3 magnitude
	float8MinNormal = 0.015625
)

// Float32ToFloat8 converts float32 to E4M3, saturating at the format's
// maximum finite value rather than producing infinities.
func Float32ToFloat8(f float32) Float8 {
	bits := math.Float32bits(f)
	sign := uint8((bits >> 31) & 0x1)

	if math.IsNaN(float64(f)) {
		return Float8((sign << 7) | 0x7F)
	}

	abs := float64(f)
	if abs < 0 {
		abs = -abs
	}
	if abs > float8MaxNormal {
		abs = float8MaxNormal
	}
	if abs < float8MinNormal/8 {
		// Below the smallest subnormal, round to zero.
		return Float8(sign << 7)
	}

	exp := int(math.Floor(math.Log2(abs)))
	if exp < -6 {
		// Subnormal range: fixed exponent -6, 3-bit mantissa.
		mant := int(math.Round(abs / math.Ldexp(1, -6) * 8))
		if mant > 7 {
			mant = 7
		}
		return Float8((sign << 7) | uint8(mant))
	}
	if exp > 8 {
		exp = 8
	}
	mant := int(math.Round((abs/math.Ldexp(1, exp) - 1) * 8))
	if mant > 7 {
		// Rounding carried into the next exponent.
		mant = 0
		exp++
		if exp > 8 {
			return Float8((sign << 7) | 0x7E) // saturate at max finite
		}
	}
	return Float8((sign << 7) | uint8(exp+7)<<3 | uint8(mant))
}

// Float8ToFloat32 converts E4M3 to float32.
func Float8ToFloat32(h Float8) float32 {
	sign := float64(1)
	if h&0x80 != 0 {
		sign = -1
	}
	exp := int((h >> 3) & 0xF)
	mant := float64(h & 0x7)

	if exp == 15 && mant == 7 {
		return float32(math.NaN())
	}
	if exp == 0 {
		// Subnormal
		return float32(sign * mant / 8 * math.Ldexp(1, -6))
	}
	return float32(sign * (1 + mant/8) * math.Ldexp(1, exp-7))
}

// RoundTrip rounds v through the given storage precision.
func RoundTrip(v float32, p Precision) float32 {
	switch p {
	case PrecisionFP16:
		return Float16ToFloat32(Float32ToFloat16(v))
	case PrecisionFP8:
		return Float8ToFloat32(Float32ToFloat8(v))
	default:
		return v
	}
}
