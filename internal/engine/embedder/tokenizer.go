package embedder

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// defaultMaxSeqLen caps sentence-model inputs when no limit is configured.
	defaultMaxSeqLen = 128
	// maxWordRunes is the longest word WordPiece will try to split.
	maxWordRunes = 100
	unkToken     = "[UNK]"
)

// tokenized is a batch ready for ONNX inference. Slices are flat,
// [batchSize * seqLen].
type tokenized struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
	batchSize     int64
	seqLen        int64
}

// tokenizer is a BERT WordPiece tokenizer. Uncased vocabularies (the CLIP
// text towers) lowercase and strip accents; cased multilingual sentence
// models see the text as written.
type tokenizer struct {
	vocab     *vocab
	maxSeqLen int
	lowercase bool
}

func newTokenizer(vocabPath string, maxSeqLen int, lowercase bool) (*tokenizer, error) {
	v, err := loadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	if maxSeqLen <= 2 {
		maxSeqLen = defaultMaxSeqLen
	}
	return &tokenizer{vocab: v, maxSeqLen: maxSeqLen, lowercase: lowercase}, nil
}

// encode returns [CLS] ids... [SEP] without padding, truncated so the
// result fits maxSeqLen.
func (t *tokenizer) encode(text string) []int64 {
	ids := make([]int64, 0, min(t.maxSeqLen, len(text)+2))
	ids = append(ids, t.vocab.clsID)
	limit := t.maxSeqLen - 1
	for _, word := range t.words(text) {
		for _, piece := range t.pieces(word) {
			if len(ids) == limit {
				return append(ids, t.vocab.sepID)
			}
			ids = append(ids, t.vocab.lookup(piece))
		}
	}
	return append(ids, t.vocab.sepID)
}

// tokenize encodes one text padded to maxSeqLen. realLen counts the
// non-padding positions.
func (t *tokenizer) tokenize(text string) (inputIDs, attentionMask []int64, realLen int) {
	inputIDs = make([]int64, t.maxSeqLen)
	attentionMask = make([]int64, t.maxSeqLen)
	realLen = t.fill(inputIDs, attentionMask, t.encode(text))
	return inputIDs, attentionMask, realLen
}

// fill writes ids into a row, padding the remainder, and returns len(ids).
func (t *tokenizer) fill(row, mask, ids []int64) int {
	n := copy(row, ids)
	for i := range row {
		if i < n {
			mask[i] = 1
		} else {
			row[i] = t.vocab.padID
		}
	}
	return n
}

// tokenizeBatch packs texts into one batch. Rows are padded to the longest
// sequence, or to maxSeqLen when fixed is set for models exported with a
// static context length.
func (t *tokenizer) tokenizeBatch(texts []string, fixed bool) tokenized {
	if len(texts) == 0 {
		return tokenized{}
	}

	encoded := make([][]int64, len(texts))
	width := 0
	for i, text := range texts {
		encoded[i] = t.encode(text)
		width = max(width, len(encoded[i]))
	}
	if fixed {
		width = t.maxSeqLen
	}

	out := tokenized{
		batchSize: int64(len(texts)),
		seqLen:    int64(width),
	}
	total := len(texts) * width
	out.inputIDs = make([]int64, total)
	out.attentionMask = make([]int64, total)
	out.tokenTypeIDs = make([]int64, total)

	for i, ids := range encoded {
		lo, hi := i*width, (i+1)*width
		t.fill(out.inputIDs[lo:hi], out.attentionMask[lo:hi], ids)
	}
	return out
}

// words runs BERT's basic tokenization in a single pass. Whitespace and
// control characters separate words; each punctuation mark or CJK
// ideograph becomes a word of its own.
func (t *tokenizer) words(text string) []string {
	if t.lowercase {
		text = foldText(text)
	}

	var (
		words []string
		start = -1
	)
	flush := func(end int) {
		if start >= 0 {
			words = append(words, text[start:end])
			start = -1
		}
	}
	for i, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
			flush(i)
		case isSpace(r):
			flush(i)
		case isPunct(r) || unicode.Is(cjkIdeographs, r):
			flush(i)
			words = append(words, string(r))
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))
	return words
}

// pieces splits a word into WordPiece subwords by greedy longest match.
// A word that cannot be fully covered becomes a single [UNK].
func (t *tokenizer) pieces(word string) []string {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []string{unkToken}
	}

	var out []string
	for start := 0; start < len(runes); {
		end := len(runes)
		var match string
		for ; end > start; end-- {
			cand := string(runes[start:end])
			if start > 0 {
				cand = "##" + cand
			}
			if t.vocab.contains(cand) {
				match = cand
				break
			}
		}
		if match == "" {
			return []string{unkToken}
		}
		out = append(out, match)
		start = end
	}
	return out
}

// foldText lowercases and removes combining marks after NFD decomposition.
func foldText(text string) string {
	decomposed := norm.NFD.String(strings.ToLower(text))
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, decomposed)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	}
	return unicode.IsControl(r)
}

// isPunct treats all non-alphanumeric printable ASCII as punctuation, as
// BERT does, in addition to the Unicode P categories.
func isPunct(r rune) bool {
	if r < 0x80 {
		return r > ' ' && r < 0x7f && !('0' <= r && r <= '9') && !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z')
	}
	return unicode.IsPunct(r)
}

// cjkIdeographs covers the CJK Unified Ideograph blocks and extensions A-E
// plus the compatibility ideographs.
var cjkIdeographs = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3400, Hi: 0x4dbf, Stride: 1},
		{Lo: 0x4e00, Hi: 0x9fff, Stride: 1},
		{Lo: 0xf900, Hi: 0xfaff, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x20000, Hi: 0x2a6df, Stride: 1},
		{Lo: 0x2a700, Hi: 0x2ceaf, Stride: 1},
		{Lo: 0x2f800, Hi: 0x2fa1f, Stride: 1},
	},
}
