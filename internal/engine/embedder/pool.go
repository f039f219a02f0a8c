package embedder

// meanPool averages per-token hidden states over the positions where the
// attention mask is set, giving one [dim] vector per sample.
// hidden is [batch, seq, dim] and mask is [batch, seq], both flattened.
// A sample with no unmasked token pools to the zero vector.
func meanPool(hidden []float32, mask []int64, batchSize, seqLen, dim int64) []float32 {
	out := make([]float32, batchSize*dim)
	acc := make([]float64, dim)

	for b := range batchSize {
		clear(acc)
		var n int
		rowMask := mask[b*seqLen : (b+1)*seqLen]
		for s, m := range rowMask {
			if m == 0 {
				continue
			}
			n++
			tok := hidden[(b*seqLen+int64(s))*dim:][:dim]
			for d, x := range tok {
				acc[d] += float64(x)
			}
		}
		if n == 0 {
			continue
		}
		dst := out[b*dim : (b+1)*dim]
		for d := range dst {
			dst[d] = float32(acc[d] / float64(n))
		}
	}
	return out
}
