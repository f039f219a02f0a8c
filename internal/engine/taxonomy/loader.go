package taxonomy

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// parseKeyValue reads one `key:value` record per line. Blank lines are
// skipped. The first ASCII colon separates key from value, so values may
// contain further colons.
func parseKeyValue(r io.Reader) ([][2]string, error) {
	var records [][2]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if text == "" {
			continue
		}
		key, value, ok := strings.Cut(text, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: missing ':' separator", line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", line)
		}
		records = append(records, [2]string{key, value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ParseCategories reads `category_id:standard_description` lines. The
// remediation text of each category is taken from DefaultCategories, or
// GenericRemediation for ids without one.
func ParseCategories(r io.Reader) ([]model.HazardCategory, error) {
	records, err := parseKeyValue(r)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("taxonomy: no categories")
	}

	remediation := make(map[string]string)
	for _, c := range DefaultCategories() {
		remediation[c.ID] = c.Remediation
	}

	seen := make(map[string]bool, len(records))
	cats := make([]model.HazardCategory, 0, len(records))
	for _, rec := range records {
		id := rec[0]
		if seen[id] {
			return nil, fmt.Errorf("taxonomy: duplicate category %q", id)
		}
		seen[id] = true
		rem, ok := remediation[id]
		if !ok {
			rem = GenericRemediation(id)
		}
		cats = append(cats, model.HazardCategory{ID: id, Description: rec[1], Remediation: rem})
	}
	return cats, nil
}

// LoadCategories reads the category-description file at path. An empty
// path selects DefaultCategories.
func LoadCategories(path string) ([]model.HazardCategory, error) {
	if path == "" {
		return DefaultCategories(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %w", err)
	}
	defer f.Close()
	return ParseCategories(f)
}

// ParseDescriptions reads `category_id-sequence_id:description` lines into
// a map keyed by "category_id-sequence_id".
func ParseDescriptions(r io.Reader) (map[string]string, error) {
	records, err := parseKeyValue(r)
	if err != nil {
		return nil, fmt.Errorf("descriptions: %w", err)
	}
	out := make(map[string]string, len(records))
	for _, rec := range records {
		if _, _, ok := strings.Cut(rec[0], "-"); !ok {
			return nil, fmt.Errorf("descriptions: key %q is not category-sequence", rec[0])
		}
		out[rec[0]] = rec[1]
	}
	return out, nil
}

// LoadDescriptions reads the per-exemplar description file at path.
func LoadDescriptions(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("descriptions: %w", err)
	}
	defer f.Close()
	return ParseDescriptions(f)
}
