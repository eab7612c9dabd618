package bulkload

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/versebase/internal/engine"
)

// Source datasets spell book names every way imaginable. The mapping is a
// closed table on purpose: an identifier we have never seen is a hard
// UNMAPPED_IDENTIFIER error, never a best-effort guess, because a wrong
// guess silently merges two books.
//
// Keys are normalized with normalizeIdent before lookup, so the table
// itself is written in display form and stays readable.

var canonicalBooks = []string{
	"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy",
	"Joshua", "Judges", "Ruth",
	"1 Samuel", "2 Samuel", "1 Kings", "2 Kings",
	"1 Chronicles", "2 Chronicles",
	"Ezra", "Nehemiah", "Esther", "Job", "Psalms", "Proverbs",
	"Ecclesiastes", "Song of Solomon", "Isaiah", "Jeremiah",
	"Lamentations", "Ezekiel", "Daniel", "Hosea", "Joel", "Amos",
	"Obadiah", "Jonah", "Micah", "Nahum", "Habakkuk", "Zephaniah",
	"Haggai", "Zechariah", "Malachi",
	"Matthew", "Mark", "Luke", "John", "Acts", "Romans",
	"1 Corinthians", "2 Corinthians", "Galatians", "Ephesians",
	"Philippians", "Colossians",
	"1 Thessalonians", "2 Thessalonians",
	"1 Timothy", "2 Timothy", "Titus", "Philemon", "Hebrews",
	"James", "1 Peter", "2 Peter", "1 John", "2 John", "3 John",
	"Jude", "Revelation",
}

// bookAliases maps the spellings observed in source dumps to canonical
// names. Canonical names themselves are added at init, so the table lists
// only the deviations.
var bookAliases = map[string]string{
	"Gen":              "Genesis",
	"Exod":             "Exodus",
	"Ex":               "Exodus",
	"Lev":              "Leviticus",
	"Num":              "Numbers",
	"Deut":             "Deuteronomy",
	"Josh":             "Joshua",
	"Judg":             "Judges",
	"1st Samuel":       "1 Samuel",
	"2nd Samuel":       "2 Samuel",
	"I Samuel":         "1 Samuel",
	"II Samuel":        "2 Samuel",
	"1Sam":             "1 Samuel",
	"2Sam":             "2 Samuel",
	"1st Kings":        "1 Kings",
	"2nd Kings":        "2 Kings",
	"I Kings":          "1 Kings",
	"II Kings":         "2 Kings",
	"1st Chronicles":   "1 Chronicles",
	"2nd Chronicles":   "2 Chronicles",
	"I Chronicles":     "1 Chronicles",
	"II Chronicles":    "2 Chronicles",
	"1Chr":             "1 Chronicles",
	"2Chr":             "2 Chronicles",
	"Neh":              "Nehemiah",
	"Esth":             "Esther",
	"Psalm":            "Psalms",
	"Psa":              "Psalms",
	"Ps":               "Psalms",
	"Prov":             "Proverbs",
	"Eccl":             "Ecclesiastes",
	"Ecclesiast":       "Ecclesiastes",
	"Song of Sol.":     "Song of Solomon",
	"Song of Songs":    "Song of Solomon",
	"Canticles":        "Song of Solomon",
	"Isa":              "Isaiah",
	"Jer":              "Jeremiah",
	"Lam":              "Lamentations",
	"Ezek":             "Ezekiel",
	"Dan":              "Daniel",
	"Hos":              "Hosea",
	"Obad":             "Obadiah",
	"Mic":              "Micah",
	"Nah":              "Nahum",
	"Hab":              "Habakkuk",
	"Zeph":             "Zephaniah",
	"Hag":              "Haggai",
	"Zech":             "Zechariah",
	"Mal":              "Malachi",
	"Matt":             "Matthew",
	"Mt":               "Matthew",
	"Mk":               "Mark",
	"Lk":               "Luke",
	"Jn":               "John",
	"Acts of the Apostles": "Acts",
	"Rom":              "Romans",
	"1st Corinthians":  "1 Corinthians",
	"2nd Corinthians":  "2 Corinthians",
	"I Corinthians":    "1 Corinthians",
	"II Corinthians":   "2 Corinthians",
	"1Cor":             "1 Corinthians",
	"2Cor":             "2 Corinthians",
	"Gal":              "Galatians",
	"Eph":              "Ephesians",
	"Phil":             "Philippians",
	"Col":              "Colossians",
	"1st Thessalonians": "1 Thessalonians",
	"2nd Thessalonians": "2 Thessalonians",
	"I Thessalonians":  "1 Thessalonians",
	"II Thessalonians": "2 Thessalonians",
	"1st Timothy":      "1 Timothy",
	"2nd Timothy":      "2 Timothy",
	"I Timothy":        "1 Timothy",
	"II Timothy":       "2 Timothy",
	"1Tim":             "1 Timothy",
	"2Tim":             "2 Timothy",
	"Philem":           "Philemon",
	"Heb":              "Hebrews",
	"Jas":              "James",
	"1st Peter":        "1 Peter",
	"2nd Peter":        "2 Peter",
	"I Peter":          "1 Peter",
	"II Peter":         "2 Peter",
	"1st John":         "1 John",
	"2nd John":         "2 John",
	"3rd John":         "3 John",
	"I John":           "1 John",
	"II John":          "2 John",
	"III John":         "3 John",
	"Rev":              "Revelation",
	"Apocalypse":       "Revelation",
	"The Revelation":   "Revelation",
}

// categoryKinds maps source category-kind labels to the fixed vocabulary
// the schema stores.
var categoryKinds = map[string]string{
	"topic":        "topic",
	"topical":      "topic",
	"topics":       "topic",
	"theme":        "topic",
	"themes":       "topic",
	"person":       "person",
	"people":       "person",
	"character":    "person",
	"characters":   "person",
	"memory_verse": "memory_verse",
	"memory":       "memory_verse",
	"memorization": "memory_verse",
	"devotional":   "devotional",
	"devotion":     "devotional",
	"devotions":    "devotional",
	"plan":         "plan",
	"plans":        "plan",
	"reading plan": "plan",
}

var bookTable map[string]string
var kindTable map[string]string

func init() {
	bookTable = make(map[string]string, len(canonicalBooks)+len(bookAliases))
	for _, name := range canonicalBooks {
		bookTable[normalizeIdent(name)] = name
	}
	for alias, name := range bookAliases {
		bookTable[normalizeIdent(alias)] = name
	}
	kindTable = make(map[string]string, len(categoryKinds))
	for alias, kind := range categoryKinds {
		kindTable[normalizeIdent(alias)] = kind
	}
}

var identCaser = cases.Fold()

// normalizeIdent collapses whitespace, applies NFC, and case-folds, so
// lookup is insensitive to the formatting noise dumps carry.
func normalizeIdent(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return identCaser.String(norm.NFC.String(s))
}

// CanonicalBookName translates a source book identifier to its canonical
// name. Unmapped identifiers are a hard error.
func CanonicalBookName(src string) (string, error) {
	if name, ok := bookTable[normalizeIdent(src)]; ok {
		return name, nil
	}
	return "", engine.NewUnmappedIdentifierError("book", src)
}

// CanonicalCategoryKind translates a source category-kind label.
func CanonicalCategoryKind(src string) (string, error) {
	if kind, ok := kindTable[normalizeIdent(src)]; ok {
		return kind, nil
	}
	return "", engine.NewUnmappedIdentifierError("category kind", src)
}
