package embedder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// vocab maps WordPiece tokens to ids. The id of a token is its 0-based
// line number in vocab.txt.
type vocab struct {
	ids map[string]int64
	n   int

	padID int64
	unkID int64
	clsID int64
	sepID int64
}

func loadVocab(path string) (*vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()
	v, err := parseVocab(f)
	if err != nil {
		return nil, fmt.Errorf("vocab %s: %w", path, err)
	}
	return v, nil
}

// parseVocab reads one token per line. Windows line endings are tolerated
// and a repeated token keeps its first id, as in the reference tokenizers.
func parseVocab(r io.Reader) (*vocab, error) {
	v := &vocab{ids: make(map[string]int64, 21128)}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		tok := strings.TrimSuffix(sc.Text(), "\r")
		if _, dup := v.ids[tok]; !dup {
			v.ids[tok] = int64(v.n)
		}
		v.n++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if v.n == 0 {
		return nil, errors.New("empty vocabulary")
	}

	var missing []string
	for tok, dst := range map[string]*int64{
		"[PAD]": &v.padID,
		"[UNK]": &v.unkID,
		"[CLS]": &v.clsID,
		"[SEP]": &v.sepID,
	} {
		id, ok := v.ids[tok]
		if !ok {
			missing = append(missing, tok)
			continue
		}
		*dst = id
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("missing special tokens %v", missing)
	}
	return v, nil
}

// lookup returns the id of token, or the [UNK] id.
func (v *vocab) lookup(token string) int64 {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unkID
}

func (v *vocab) contains(token string) bool {
	_, ok := v.ids[token]
	return ok
}

func (v *vocab) size() int { return v.n }
