package mock

// Echo answers with the bytes sent.
func Echo(tx []byte) []byte {
	return append([]byte(nil), tx...)
}

// Zeros answers with nothing, so every rx byte reads 0x00.
func Zeros([]byte) []byte {
	return nil
}

// Invert answers with the complement of every byte sent.
func Invert(tx []byte) []byte {
	rx := make([]byte, len(tx))
	for i, b := range tx {
		rx[i] = ^b
	}
	return rx
}

// Constant answers every byte with b.
func Constant(b byte) Generator {
	return func(tx []byte) []byte {
		rx := make([]byte, len(tx))
		for i := range rx {
			rx[i] = b
		}
		return rx
	}
}

// Sequence answers with seq, repeated as often as needed. The sequence
// restarts at every transfer.
func Sequence(seq ...byte) Generator {
	seq = append([]byte(nil), seq...)
	return func(tx []byte) []byte {
		if len(seq) == 0 {
			return nil
		}
		rx := make([]byte, len(tx))
		for i := range rx {
			rx[i] = seq[i%len(seq)]
		}
		return rx
	}
}
