// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two helpers used when sizing capture
blocks and FFT workspaces.

All functions are allocation free and constant time, so they are safe to call
from the capture hot path.

	blockSize := bitint.NextPowerOfTwo(1000) // 1024
	ok := bitint.IsPowerOfTwo(blockSize)     // true

NextPowerOfTwo subtracts one before taking the bit length so that exact powers
of two map to themselves: for 8, bits.Len(7) is 3 and 1<<3 is 8, whereas
bits.Len(8) would yield 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Non-positive sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
//
//	8   1000 & 0111 = 0000  true
//	7   0111 & 0110 = 0110  false
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns log2(n) for a power of two n, and -1 otherwise.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
