package scripture

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// bookNames expands common abbreviations to canonical book names. Unknown
// books pass through title-cased, so normalization never rejects a reference;
// validity is decided by the lookup source.
var bookNames = map[string]string{
	"gen": "Genesis", "ge": "Genesis", "gn": "Genesis",
	"ex": "Exodus", "exo": "Exodus", "exod": "Exodus",
	"lev": "Leviticus", "lv": "Leviticus",
	"num": "Numbers", "nm": "Numbers", "nu": "Numbers",
	"deut": "Deuteronomy", "deu": "Deuteronomy", "dt": "Deuteronomy",
	"josh": "Joshua", "jos": "Joshua",
	"judg": "Judges", "jdg": "Judges",
	"ru": "Ruth", "rut": "Ruth",
	"1 sam": "1 Samuel", "2 sam": "2 Samuel", "1sa": "1 Samuel", "2sa": "2 Samuel",
	"1 kgs": "1 Kings", "2 kgs": "2 Kings", "1ki": "1 Kings", "2ki": "2 Kings",
	"1 chr": "1 Chronicles", "2 chr": "2 Chronicles",
	"neh": "Nehemiah", "est": "Esther",
	"ps": "Psalms", "psa": "Psalms", "psalm": "Psalms", "pss": "Psalms",
	"prov": "Proverbs", "pro": "Proverbs", "prv": "Proverbs",
	"eccl": "Ecclesiastes", "ecc": "Ecclesiastes", "qoh": "Ecclesiastes",
	"song": "Song of Solomon", "sos": "Song of Solomon", "cant": "Song of Solomon",
	"isa": "Isaiah", "is": "Isaiah",
	"jer": "Jeremiah", "lam": "Lamentations",
	"ezek": "Ezekiel", "eze": "Ezekiel", "ezk": "Ezekiel",
	"dan": "Daniel", "dn": "Daniel",
	"hos": "Hosea", "jl": "Joel", "am": "Amos", "ob": "Obadiah",
	"jon": "Jonah", "mic": "Micah", "nah": "Nahum", "hab": "Habakkuk",
	"zeph": "Zephaniah", "hag": "Haggai", "zech": "Zechariah", "mal": "Malachi",
	"matt": "Matthew", "mt": "Matthew", "mat": "Matthew",
	"mk": "Mark", "mrk": "Mark", "mr": "Mark",
	"lk": "Luke", "luk": "Luke",
	"jn": "John", "jhn": "John", "joh": "John",
	"acts": "Acts", "ac": "Acts",
	"rom": "Romans", "rm": "Romans", "ro": "Romans",
	"1 cor": "1 Corinthians", "2 cor": "2 Corinthians", "1co": "1 Corinthians", "2co": "2 Corinthians",
	"gal": "Galatians", "eph": "Ephesians", "phil": "Philippians", "php": "Philippians",
	"col": "Colossians",
	"1 thess": "1 Thessalonians", "2 thess": "2 Thessalonians",
	"1 tim": "1 Timothy", "2 tim": "2 Timothy", "1ti": "1 Timothy", "2ti": "2 Timothy",
	"tit": "Titus", "phlm": "Philemon", "phm": "Philemon",
	"heb": "Hebrews", "jas": "James", "jm": "James",
	"1 pet": "1 Peter", "2 pet": "2 Peter", "1pe": "1 Peter", "2pe": "2 Peter",
	"1 jn": "1 John", "2 jn": "2 John", "3 jn": "3 John",
	"1jn": "1 John", "2jn": "2 John", "3jn": "3 John",
	"jude": "Jude",
	"rev": "Revelation", "re": "Revelation", "apoc": "Revelation",
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Leading book part: optional ordinal, then letter words ("song of solomon").
	bookPartRe = regexp.MustCompile(`^([1-3]?\s*[a-z]+(?:\s+(?:of\s+)?[a-z]+)*)\.?\s*(.*)$`)
	dotDigitRe = regexp.MustCompile(`(\d)\s*\.\s*(\d)`)
	sepSpaceRe = regexp.MustCompile(`\s*([:\-])\s*`)
)

var titleCaser = cases.Title(language.English)

// Normalize canonicalizes a scripture reference so that case, whitespace and
// abbreviation variants of the same citation share one cache key.
// "gen. 1:1", "Gen 1.1" and "GENESIS  1:1" all normalize to "Genesis 1:1".
func Normalize(reference string) string {
	ref := strings.ToLower(strings.TrimSpace(reference))
	ref = whitespaceRe.ReplaceAllString(ref, " ")
	if ref == "" {
		return ""
	}

	// "Gen 1.1" style dot separators become colons.
	ref = dotDigitRe.ReplaceAllString(ref, "$1:$2")
	ref = sepSpaceRe.ReplaceAllString(ref, "$1")

	m := bookPartRe.FindStringSubmatch(ref)
	if m == nil {
		return titleCaser.String(ref)
	}
	book, rest := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])

	if canonical, ok := bookNames[book]; ok {
		book = canonical
	} else if canonical, ok := bookNames[strings.ReplaceAll(book, " ", "")]; ok {
		book = canonical
	} else {
		book = titleCaser.String(book)
		// Title caser capitalizes "Of" in "Song Of Solomon".
		book = strings.ReplaceAll(book, " Of ", " of ")
	}

	if rest == "" {
		return book
	}
	return book + " " + rest
}
