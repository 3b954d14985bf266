package pipeline

import "fmt"

// Language is the pipeline-internal language identifier. Backends never see
// it directly: each registered backend carries its own table mapping a
// Language to that backend's native code (a bare ISO code, a locale, a neural
// voice name, or a model identifier).
type Language string

const (
	LanguageHindi     Language = "Hindi"
	LanguageEnglish   Language = "English"
	LanguageTamil     Language = "Tamil"
	LanguageTelugu    Language = "Telugu"
	LanguageKannada   Language = "Kannada"
	LanguageMalayalam Language = "Malayalam"
	LanguageMarathi   Language = "Marathi"
	LanguageBengali   Language = "Bengali"
	LanguageGujarati  Language = "Gujarati"
	LanguagePunjabi   Language = "Punjabi"
)

var languages = []Language{
	LanguageHindi,
	LanguageEnglish,
	LanguageTamil,
	LanguageTelugu,
	LanguageKannada,
	LanguageMalayalam,
	LanguageMarathi,
	LanguageBengali,
	LanguageGujarati,
	LanguagePunjabi,
}

// Languages returns the supported languages in display order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

func (l Language) IsValid() bool {
	for _, lang := range languages {
		if l == lang {
			return true
		}
	}
	return false
}

func ParseLanguage(name string) (Language, error) {
	l := Language(name)
	if !l.IsValid() {
		return "", fmt.Errorf("unknown language %q", name)
	}
	return l, nil
}
