package relation

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Suggestion is one join candidate between two tables.
type Suggestion struct {
	LeftTable   string  `json:"left_table"`
	LeftColumn  string  `json:"left_column"`
	RightTable  string  `json:"right_table"`
	RightColumn string  `json:"right_column"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}

// keyLikeSuffixes mark columns that usually hold join keys.
var keyLikeSuffixes = []string{"_id", "_key", "_code", "_no", "_nr"}

// SuggestJoins scores column pairs between two tables. Exact name matches
// score highest, near matches by edit distance follow; key-looking names
// and matching inferred types nudge the score up. Pairs below 0.5 are
// dropped.
func (s *Service) SuggestJoins(dbName, leftTable, rightTable string) ([]Suggestion, error) {
	left, err := s.store.TableColumns(dbName, leftTable)
	if err != nil {
		return nil, err
	}
	right, err := s.store.TableColumns(dbName, rightTable)
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	for _, lc := range left {
		for _, rc := range right {
			conf, reason := scorePair(lc.Name, rc.Name)
			if conf == 0 {
				continue
			}
			if lc.InferredType == rc.InferredType {
				conf += 0.05
			}
			if conf > 1 {
				conf = 1
			}
			if conf < 0.5 {
				continue
			}
			out = append(out, Suggestion{
				LeftTable:   leftTable,
				LeftColumn:  lc.Name,
				RightTable:  rightTable,
				RightColumn: rc.Name,
				Confidence:  conf,
				Reason:      reason,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

func scorePair(left, right string) (float64, string) {
	l := strings.ToLower(left)
	r := strings.ToLower(right)

	if l == r {
		conf := 0.9
		if isKeyLike(l) {
			conf = 0.95
		}
		return conf, "identical column names"
	}

	dist := levenshtein.DistanceForStrings([]rune(l), []rune(r), levenshtein.DefaultOptions)
	maxLen := len([]rune(l))
	if n := len([]rune(r)); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 0, ""
	}
	similarity := 1 - float64(dist)/float64(maxLen)

	if dist <= 2 && similarity >= 0.8 {
		conf := 0.6 * similarity
		if isKeyLike(l) || isKeyLike(r) {
			conf += 0.15
		}
		return conf, "similar column names"
	}

	// "equipment_id" against a table's "id", or vice versa.
	if strings.HasSuffix(l, "_"+r) || strings.HasSuffix(r, "_"+l) {
		return 0.55, "suffix match"
	}
	return 0, ""
}

func isKeyLike(name string) bool {
	if name == "id" || name == "key" {
		return true
	}
	for _, suf := range keyLikeSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}
