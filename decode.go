// Package x86shuf decodes the immediates and control tables of x86 SSE/AVX
// shuffle instructions into per-element shuffle masks.
package x86shuf

// DecodeINSERTPSMask decodes the INSERTPS immediate. Bits 0-3 zero
// destination lanes, bits 4-5 pick the destination lane and bits 6-7 pick
// the source-2 lane that is inserted.
func DecodeINSERTPSMask(imm uint) Mask {
	// Defaults to copying the destination.
	mask := []int{0, 1, 2, 3}

	zmask := imm & 15
	countD := (imm >> 4) & 3
	countS := (imm >> 6) & 3

	mask[countD] = 4 + int(countS)
	// Zeroing is applied last and may override the inserted lane.
	for i := uint(0); i < 4; i++ {
		if zmask&(1<<i) != 0 {
			mask[i] = SentinelZero
		}
	}
	return fromInts(mask)
}

// DecodeMOVHLPSMask returns <3,1> or <6,7,2,3>.
func DecodeMOVHLPSMask(numElts int) Mask {
	mask := make([]int, 0, numElts)
	for i := numElts / 2; i != numElts; i++ {
		mask = append(mask, numElts+i)
	}
	for i := numElts / 2; i != numElts; i++ {
		mask = append(mask, i)
	}
	return fromInts(mask)
}

// DecodeMOVLHPSMask returns <0,2> or <0,1,4,5>.
func DecodeMOVLHPSMask(numElts int) Mask {
	mask := make([]int, 0, numElts)
	for i := 0; i != numElts/2; i++ {
		mask = append(mask, i)
	}
	for i := 0; i != numElts/2; i++ {
		mask = append(mask, numElts+i)
	}
	return fromInts(mask)
}

// DecodePALIGNRMask decodes PALIGNR/VPALIGNR. Each 128-bit lane is the
// concatenation of the source-1 and source-2 lanes shifted down by imm
// elements; elements shifted in from past both lanes are zero. Only the low
// 8 bits of imm are read.
func DecodePALIGNRMask(vt VT, imm uint) Mask {
	numElts, _, laneElts := laneGeometry(vt)
	shift := int(imm & 0xff)

	mask := make([]int, 0, numElts)
	for l := 0; l != numElts; l += laneElts {
		for i := 0; i != laneElts; i++ {
			base := i + shift
			switch {
			case base >= 2*laneElts:
				mask = append(mask, SentinelZero)
				continue
			case base >= laneElts:
				// Past this lane of source 1: read the same lane of source 2.
				base += numElts - laneElts
			}
			mask = append(mask, base+l)
		}
	}
	return fromInts(mask)
}

// DecodePSHUFMask decodes the immediate of pshufd, pshufw and vpermilp*.
func DecodePSHUFMask(vt VT, imm uint) Mask {
	numElts, _, laneElts := laneGeometry(vt)

	mask := make([]int, 0, numElts)
	newImm := imm
	for l := 0; l != numElts; l += laneElts {
		for i := 0; i != laneElts; i++ {
			mask = append(mask, int(newImm%uint(laneElts))+l)
			newImm /= uint(laneElts)
		}
		if laneElts == 4 {
			newImm = imm // reload imm
		}
	}
	return fromInts(mask)
}

// DecodePSHUFHWMask permutes the high four words of every group of eight and
// copies the low four.
func DecodePSHUFHWMask(vt VT, imm uint) Mask {
	numElts := vt.NumElts

	mask := make([]int, 0, numElts)
	for l := 0; l < numElts; l += 8 {
		newImm := imm
		for i := 0; i != 4; i++ {
			mask = append(mask, l+i)
		}
		for i := 4; i != 8; i++ {
			mask = append(mask, l+4+int(newImm&3))
			newImm >>= 2
		}
	}
	return fromInts(mask)
}

// DecodePSHUFLWMask permutes the low four words of every group of eight and
// copies the high four.
func DecodePSHUFLWMask(vt VT, imm uint) Mask {
	numElts := vt.NumElts

	mask := make([]int, 0, numElts)
	for l := 0; l < numElts; l += 8 {
		newImm := imm
		for i := 0; i != 4; i++ {
			mask = append(mask, l+int(newImm&3))
			newImm >>= 2
		}
		for i := 4; i != 8; i++ {
			mask = append(mask, l+i)
		}
	}
	return fromInts(mask)
}

// DecodeSHUFPMask decodes shufps/shufpd. The low half of every lane reads
// source 1 and the high half reads source 2.
func DecodeSHUFPMask(vt VT, imm uint) Mask {
	numElts, _, laneElts := laneGeometry(vt)

	mask := make([]int, 0, numElts)
	newImm := imm
	for l := 0; l != numElts; l += laneElts {
		for s := 0; s != numElts*2; s += numElts {
			for i := 0; i != laneElts/2; i++ {
				mask = append(mask, int(newImm%uint(laneElts))+s+l)
				newImm /= uint(laneElts)
			}
		}
		if laneElts == 4 {
			newImm = imm // reload imm
		}
	}
	return fromInts(mask)
}

// DecodeUNPCKHMask interleaves the high halves of every 128-bit lane of the
// two sources (unpckhps/unpckhpd/punpckh*).
func DecodeUNPCKHMask(vt VT) Mask {
	numElts, _, laneElts := laneGeometry(vt)

	mask := make([]int, 0, numElts)
	for l := 0; l != numElts; l += laneElts {
		for i, e := l+laneElts/2, l+laneElts; i != e; i++ {
			mask = append(mask, i, i+numElts)
		}
	}
	return fromInts(mask)
}

// DecodeUNPCKLMask interleaves the low halves of every 128-bit lane of the
// two sources (unpcklps/unpcklpd/punpckl*).
func DecodeUNPCKLMask(vt VT) Mask {
	numElts, _, laneElts := laneGeometry(vt)

	mask := make([]int, 0, numElts)
	for l := 0; l != numElts; l += laneElts {
		for i, e := l, l+laneElts/2; i != e; i++ {
			mask = append(mask, i, i+numElts)
		}
	}
	return fromInts(mask)
}

// DecodeVPERM2X128Mask decodes vperm2i128/vperm2f128. Each destination half
// copies one of the four source halves selected by a 2-bit field at bit 4*l.
//
// When bit 3 or bit 7 is set the instruction zeroes a half, which is not a
// pure shuffle; the result is then an empty mask and false.
func DecodeVPERM2X128Mask(vt VT, imm uint) (Mask, bool) {
	if imm&0x88 != 0 {
		return nil, false
	}

	halfSize := vt.NumElts / 2
	mask := make([]int, 0, vt.NumElts)
	for l := uint(0); l != 2; l++ {
		halfBegin := int((imm>>(l*4))&3) * halfSize
		for i, e := halfBegin, halfBegin+halfSize; i != e; i++ {
			mask = append(mask, i)
		}
	}
	return fromInts(mask), true
}

// DecodeBLENDMask takes lane i from source 2 when bit i of imm is set.
func DecodeBLENDMask(vt VT, imm uint) Mask {
	numElts := vt.NumElts
	mask := make([]int, 0, numElts)
	for i := 0; i < numElts; i++ {
		if (imm>>uint(i))&1 != 0 {
			mask = append(mask, numElts+i)
		} else {
			mask = append(mask, i)
		}
	}
	return fromInts(mask)
}

// DecodeVPERMMask decodes vpermq/vpermpd, which always permute four 64-bit
// elements of a single source.
func DecodeVPERMMask(imm uint) Mask {
	mask := make([]int, 0, 4)
	for i := uint(0); i != 4; i++ {
		mask = append(mask, int((imm>>(2*i))&3))
	}
	return fromInts(mask)
}
