package owner

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// RulesVersion identifies the current normalization rule set. Any change
// to the suffix table or the transform order must bump this constant so
// that stored owner keys can be rebuilt as an explicit migration.
const RulesVersion = 1

// entitySuffixes is the closed set of trailing tokens stripped from
// owner names: corporate forms, trust and estate markers, farm-entity
// markers, spousal abbreviations, and generational suffixes. Multi-word
// suffixes are handled by stripping one trailing token at a time.
var entitySuffixes = map[string]bool{
	"LLC": true, "LLP": true, "LP": true, "INC": true, "CORP": true,
	"CO": true, "LTD": true, "COMPANY": true, "CORPORATION": true,
	"TRUST": true, "TRUSTEE": true, "TRUSTEES": true, "REV": true,
	"REVOCABLE": true, "LIVING": true, "IRREVOCABLE": true,
	"ESTATE": true, "EST": true, "FAMILY": true,
	"FARM": true, "FARMS": true, "RANCH": true, "RANCHES": true,
	"PROPERTIES": true, "HOLDINGS": true, "LAND": true,
	"ETAL": true, "ETUX": true, "ETVIR": true,
	"JR": true, "SR": true, "II": true, "III": true, "IV": true,
}

// pairSuffixes are two-token suffixes stripped as a unit before the
// single-token pass, so "ET AL" does not leave a dangling "ET".
var pairSuffixes = [][2]string{
	{"ET", "AL"},
	{"ET", "UX"},
	{"ET", "VIR"},
}

var (
	punctuationRe = regexp.MustCompile(`[^\p{L}\p{N},\s]+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Normalize maps a raw ownership string to its canonical owner key.
// It is deterministic and total: unparseable input degrades to an
// uppercased, trimmed fallback rather than failing. Two raw strings
// that normalize to the same key are treated as the same legal owner
// for grouping purposes. This is a heuristic, not a legal determination.
//
// Transform order: uppercase, strip punctuation, collapse whitespace,
// strip entity suffixes, rewrite "LAST, FIRST" to "FIRST LAST".
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	cleaned := punctuationRe.ReplaceAllString(s, " ")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return s
	}

	cleaned = stripSuffixes(cleaned)
	cleaned = rewriteLastFirst(cleaned)

	// Suffix stripping can leave doubled spaces behind; collapse again.
	cleaned = strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		return s
	}
	return cleaned
}

// stripSuffixes removes trailing entity-marker tokens, repeatedly, so
// "SMITH FAMILY TRUST LLC" reduces to "SMITH". At least one token is
// always kept.
func stripSuffixes(s string) string {
	tokens := strings.Fields(strings.ReplaceAll(s, ",", " , "))

	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		if last == "," {
			tokens = tokens[:len(tokens)-1]
			continue
		}

		if len(tokens) > 2 && tokens[len(tokens)-2] != "," {
			pair := [2]string{tokens[len(tokens)-2], last}
			if isPairSuffix(pair) {
				tokens = tokens[:len(tokens)-2]
				continue
			}
		}

		if entitySuffixes[last] && countWords(tokens[:len(tokens)-1]) > 0 {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}

	return strings.TrimSpace(strings.ReplaceAll(strings.Join(tokens, " "), " , ", ", "))
}

func isPairSuffix(pair [2]string) bool {
	for _, p := range pairSuffixes {
		if p == pair {
			return true
		}
	}
	return false
}

func countWords(tokens []string) int {
	n := 0
	for _, t := range tokens {
		if t != "," {
			n++
		}
	}
	return n
}

// rewriteLastFirst converts "DOE, JANE" to "JANE DOE". Only applied when
// there is exactly one comma with non-empty parts on both sides; anything
// else is left untouched.
func rewriteLastFirst(s string) string {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return strings.ReplaceAll(s, ",", " ")
	}

	last := strings.TrimSpace(parts[0])
	first := strings.TrimSpace(parts[1])
	if last == "" || first == "" {
		return strings.TrimSpace(strings.ReplaceAll(s, ",", " "))
	}

	return first + " " + last
}

// Similar reports whether two raw owner strings are within the given
// edit distance after normalization. Used only for interactive
// find-similar-owner search; clustering always uses exact key equality
// so runs stay deterministic and reproducible.
func Similar(a, b string, maxEditDistance int) bool {
	if maxEditDistance < 0 {
		return false
	}
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	return levenshtein.ComputeDistance(na, nb) <= maxEditDistance
}
