package utils

import (
	"bufio"
	"os"
	"strings"
)

// Blacklist holds release terms that are never acceptable for any tracked show.
// Terms are merged into each show's exclude words, so matching is whole-word.
type Blacklist struct {
	terms []string
}

// LoadBlacklist loads blacklist terms from a file, one per line, '#' for comments
func LoadBlacklist(path string) (*Blacklist, error) {
	// If file doesn't exist, return empty blacklist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Blacklist{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, term)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Blacklist{terms: terms}, nil
}

// Terms returns a copy of the loaded terms
func (b *Blacklist) Terms() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.terms...)
}

// MergeInto appends the blacklist to a comma-separated exclude list
func (b *Blacklist) MergeInto(exclude string) string {
	terms := b.Terms()
	if len(terms) == 0 {
		return exclude
	}
	if strings.TrimSpace(exclude) == "" {
		return strings.Join(terms, ",")
	}
	return exclude + "," + strings.Join(terms, ",")
}
