package review

import (
	"slices"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Vocabulary is a sorted, duplicate-free list of previously seen values used for autocomplete.
// The zero value is an empty vocabulary. Methods return a new Vocabulary; the receiver is never modified.
type Vocabulary struct {
	values []string
}

// NewVocabulary builds a vocabulary from arbitrary values, dropping duplicates and sorting.
func NewVocabulary(values ...string) Vocabulary {
	var v Vocabulary
	for _, value := range values {
		v = v.Merge(value)
	}
	return v
}

// Merge inserts candidate if it is not already present (exact, case-sensitive match)
// and re-sorts. Empty candidates are ignored.
func (v Vocabulary) Merge(candidate string) Vocabulary {
	if candidate == "" || v.Contains(candidate) {
		return v
	}
	values := make([]string, len(v.values), len(v.values)+1)
	copy(values, v.values)
	values = append(values, candidate)
	sort.SliceStable(values, func(i, j int) bool { return values[i] < values[j] })
	return Vocabulary{values: values}
}

// Replace adopts the server's list as given. The server already sorts it.
func (v Vocabulary) Replace(serverList []string) Vocabulary {
	return Vocabulary{values: slices.Clone(serverList)}
}

// Values returns a copy of the entries in order.
func (v Vocabulary) Values() []string {
	return slices.Clone(v.values)
}

// Len returns the number of entries.
func (v Vocabulary) Len() int {
	return len(v.values)
}

// Contains reports whether value is an entry.
func (v Vocabulary) Contains(value string) bool {
	return slices.Contains(v.values, value)
}

// Suggest returns up to limit entries fuzzily matching text, best match first.
// An empty text suggests nothing. A limit <= 0 means no limit.
func (v Vocabulary) Suggest(text string, limit int) []string {
	if text == "" {
		return nil
	}
	ranks := fuzzy.RankFindFold(text, v.values)
	sort.Stable(ranks)

	out := make([]string, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, r.Target)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Vocabularies groups the three autocomplete lists.
type Vocabularies struct {
	Accounts     Vocabulary
	Categories   Vocabulary
	Descriptions Vocabulary
}

// Learn merges the values an edited transaction introduces.
func (v Vocabularies) Learn(t Transaction) Vocabularies {
	v.Accounts = v.Accounts.Merge(t.SourceAccount).Merge(t.DestinationAccount)
	v.Categories = v.Categories.Merge(t.CategoryName)
	v.Descriptions = v.Descriptions.Merge(t.Description)
	return v
}
