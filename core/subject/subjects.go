// Package subject holds the platform-wide subject catalog. Subject codes are
// the unit of access control: every user record carries one access grant per
// code, and every course is keyed by one.
package subject

// Subjects maps subject codes to their display names.
var Subjects = map[string]string{
	"math":  "Математика (профиль)",
	"mathb": "Математика (база)",
	"rus":   "Русский язык",
	"phys":  "Физика",
	"inf":   "Информатика",
	"bio":   "Биология",
	"chem":  "Химия",
	"geo":   "География",
	"soc":   "Обществознание",
	"hist":  "История",
	"lit":   "Литература",
	"en":    "Английский язык",
	"de":    "Немецкий язык",
	"fr":    "Французский язык",
	"sp":    "Испанский язык",
}

// codes in a stable, display-friendly order
var ordered = []string{
	"math", "mathb", "rus", "phys", "inf", "bio", "chem", "geo",
	"soc", "hist", "lit", "en", "de", "fr", "sp",
}

// Codes returns all known subject codes.
func Codes() []string {
	out := make([]string, len(ordered))
	copy(out, ordered)
	return out
}

// Name returns the display name for a code, or the code itself when unknown.
func Name(code string) string {
	if name, ok := Subjects[code]; ok {
		return name
	}
	return code
}

// IsKnown reports whether code is part of the catalog.
func IsKnown(code string) bool {
	_, ok := Subjects[code]
	return ok
}
