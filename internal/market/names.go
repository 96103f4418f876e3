package market

import (
	"strings"
	"unicode"
)

var (
	namePrefixes = []string{
		"Al", "Bel", "Cor", "Dyn", "Ever", "Fal", "Gran", "Hel", "Ion", "Jun",
		"Kel", "Lum", "Mar", "Nor", "Orb", "Pax", "Quin", "Ros", "Sol", "Tor",
		"Ul", "Ver", "Wex", "Xan", "Yor", "Zen",
	}
	nameRoots = []string{
		"tex", "vara", "dyne", "corp", "ium", "ora", "gen", "tron", "lux", "mont",
		"field", "stone", "wave", "bridge", "point", "crest",
	}
	nameSuffixes = []string{
		"Industries", "Holdings", "Group", "Systems", "Logistics", "Foods",
		"Energy", "Motors", "Labs", "Partners", "Mining", "Textiles",
	}
)

// MaxSymbolLen is the longest symbol the market assigns.
const MaxSymbolLen = 4

// NameGenerator produces procedural company names from the shared stream.
type NameGenerator struct {
	rnd Random
}

// NewNameGenerator creates a NameGenerator drawing from rnd.
func NewNameGenerator(rnd Random) *NameGenerator {
	return &NameGenerator{rnd: rnd}
}

// Name draws a company name. taken reports names already in use; the
// generator retries a bounded number of times and then appends a roman
// numeral to stay unique.
func (g *NameGenerator) Name(taken func(string) bool) string {
	var name string
	for i := 0; i < 16; i++ {
		name = g.draw()
		if taken == nil || !taken(name) {
			return name
		}
	}
	for _, n := range []string{"II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X"} {
		candidate := name + " " + n
		if !taken(candidate) {
			return candidate
		}
	}
	return name
}

func (g *NameGenerator) draw() string {
	prefix := namePrefixes[g.rnd.Next(0, len(namePrefixes)-1)]
	root := nameRoots[g.rnd.Next(0, len(nameRoots)-1)]
	suffix := nameSuffixes[g.rnd.Next(0, len(nameSuffixes)-1)]
	return prefix + root + " " + suffix
}

// Symbol derives a ticker of at most MaxSymbolLen uppercase letters from
// name. Collisions reported by taken are resolved by rewriting the trailing
// letters.
func Symbol(name string, taken func(string) bool) string {
	base := symbolBase(name)
	if taken == nil || !taken(base) {
		return base
	}

	letters := lettersOf(name)
	// swap the last letter for later letters of the name
	stem := base[:len(base)-1]
	for _, r := range letters {
		candidate := stem + string(r)
		if !taken(candidate) {
			return candidate
		}
	}
	// then walk the alphabet, first on the last position, then on the last two
	for c := 'A'; c <= 'Z'; c++ {
		candidate := stem + string(c)
		if !taken(candidate) {
			return candidate
		}
	}
	if len(stem) > 0 {
		stem2 := stem[:len(stem)-1]
		for c1 := 'A'; c1 <= 'Z'; c1++ {
			for c2 := 'A'; c2 <= 'Z'; c2++ {
				candidate := stem2 + string(c1) + string(c2)
				if !taken(candidate) {
					return candidate
				}
			}
		}
	}
	return base
}

func symbolBase(name string) string {
	var words [][]rune
	for _, w := range strings.Fields(name) {
		if l := lettersOf(w); len(l) > 0 {
			words = append(words, l)
		}
	}
	if len(words) == 0 {
		return "X"
	}
	if len(words) > MaxSymbolLen {
		words = words[:MaxSymbolLen]
	}

	// leading letters of the first word, then initials of the rest
	head := MaxSymbolLen - (len(words) - 1)
	first := words[0]
	if len(first) < head {
		head = len(first)
	}
	out := append([]rune{}, first[:head]...)
	for _, w := range words[1:] {
		out = append(out, w[0])
	}
	return string(out)
}

func lettersOf(s string) []rune {
	var out []rune
	for _, r := range s {
		if r <= unicode.MaxASCII && unicode.IsLetter(r) {
			out = append(out, unicode.ToUpper(r))
		}
	}
	return out
}
