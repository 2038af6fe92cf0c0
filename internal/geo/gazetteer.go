package geo

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// Gazetteer is a static list of names, subdivision codes, and keywords for
// the target region. A match resolves to the region's country code without a
// network call. Matching is whole-word: single-word terms must match a token
// exactly, multi-word terms must appear as a contiguous token run. Plain
// substring checks are deliberately avoided, short codes like "ir" appear
// inside too many unrelated words.
type Gazetteer struct {
	code    string
	words   map[string]struct{}
	phrases []string
}

// Subdivision names, codes, and common keywords for Iran, the default
// target region.
var (
	iranNames = []string{
		"alborz",
		"ardabil",
		"bushehr",
		"chaharmahal and bakhtiari", "chahar mahal and bakhtiari",
		"east azerbaijan", "east azarbaijan",
		"fars",
		"gilan",
		"golestan",
		"hamadan", "hamedan",
		"hormozgan",
		"ilam",
		"isfahan", "esfahan",
		"kerman",
		"kermanshah",
		"khuzestan",
		"kohgiluyeh and boyer-ahmad", "kohgiluyeh and boyer ahmad",
		"kurdistan",
		"lorestan", "lurestan",
		"markazi",
		"mazandaran",
		"north khorasan", "northern khorasan",
		"qazvin",
		"qom",
		"razavi khorasan", "khorasan razavi",
		"semnan",
		"sistan and baluchestan", "sistan and baluchistan",
		"south khorasan", "southern khorasan",
		"tehran",
		"west azerbaijan", "west azarbaijan",
		"yazd",
		"zanjan",
	}

	iranCodes = []string{
		"alb", "ard", "bsh", "cnb", "chb", "eaz", "far", "gil", "gol",
		"ham", "hor", "ila", "isf", "esf", "ker", "krm", "khu", "kba",
		"kur", "lor", "mar", "maz", "nkh", "qaz", "qom", "rkh", "sem",
		"sba", "skh", "teh", "waz", "yaz", "zan",
	}

	iranKeywords = []string{
		"iran",
		"ir", "i.r.", "i.r",
		"islamic republic of iran",
		"persia", "persian",
		"tehran",
		"iranian",
	}
)

// NewGazetteer builds the gazetteer for the given country code. Region data
// ships for Iran; any other code gets a minimal gazetteer that matches the
// country code itself.
func NewGazetteer(code string) *Gazetteer {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "IR"
	}
	g := &Gazetteer{code: code, words: make(map[string]struct{})}

	var terms []string
	if code == "IR" {
		terms = append(terms, iranNames...)
		terms = append(terms, iranCodes...)
		terms = append(terms, iranKeywords...)
	} else {
		terms = []string{strings.ToLower(code)}
	}

	for _, term := range terms {
		tokens := wordPattern.FindAllString(strings.ToLower(term), -1)
		switch len(tokens) {
		case 0:
		case 1:
			g.words[tokens[0]] = struct{}{}
		default:
			g.phrases = append(g.phrases, " "+strings.Join(tokens, " ")+" ")
		}
	}
	return g
}

// Code returns the country code this gazetteer resolves matches to.
func (g *Gazetteer) Code() string { return g.code }

// Match reports whether the location text names the target region.
func (g *Gazetteer) Match(location string) bool {
	tokens := wordPattern.FindAllString(strings.ToLower(location), -1)
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if _, ok := g.words[tok]; ok {
			return true
		}
	}
	if len(g.phrases) == 0 {
		return false
	}
	joined := " " + strings.Join(tokens, " ") + " "
	for _, phrase := range g.phrases {
		if strings.Contains(joined, phrase) {
			return true
		}
	}
	return false
}
