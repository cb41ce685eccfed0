package wire

// CompressTransactionBytes elides trailing fully-zero bytes from the
// fixed-length uncompressed transaction payload. The wire format's
// compression is defined in terms of trailing zero trytes in the
// signature field; since the node's byte encoding of trits packs five
// trits per byte and a zero byte unpacks to five zero trits, truncating
// trailing zero bytes of the fixed-size buffer drops trailing zero trits
// without this package performing any ternary arithmetic itself.
func CompressTransactionBytes(uncompressed []byte) []byte {
	end := len(uncompressed)
	for end > 0 && uncompressed[end-1] == 0 {
		end--
	}

	out := make([]byte, end)
	copy(out, uncompressed[:end])

	return out
}

// InflateTransactionBytes zero-pads compressed back out to
// maxUncompressedTransactionLength, the receiver-side inverse of
// CompressTransactionBytes.
func InflateTransactionBytes(compressed []byte) []byte {
	out := make([]byte, maxUncompressedTransactionLength)
	copy(out, compressed)

	return out
}
