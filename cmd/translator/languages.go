package main

import (
	"voice-translator/cmd/translator/pipeline"
)

// Per-backend language code tables. Each backend speaks its own dialect of
// language identifiers: whisper.cpp and the public translate endpoints take
// bare ISO 639-1 codes, while the Azure Speech SDK takes BCP-47 locales for
// recognition and full neural voice names for synthesis.

var whisperCodes = map[pipeline.Language]string{
	pipeline.LanguageHindi:     "hi",
	pipeline.LanguageEnglish:   "en",
	pipeline.LanguageTamil:     "ta",
	pipeline.LanguageTelugu:    "te",
	pipeline.LanguageKannada:   "kn",
	pipeline.LanguageMalayalam: "ml",
	pipeline.LanguageMarathi:   "mr",
	pipeline.LanguageBengali:   "bn",
	pipeline.LanguageGujarati:  "gu",
	pipeline.LanguagePunjabi:   "pa",
}

var googleCodes = map[pipeline.Language]string{
	pipeline.LanguageHindi:     "hi",
	pipeline.LanguageEnglish:   "en",
	pipeline.LanguageTamil:     "ta",
	pipeline.LanguageTelugu:    "te",
	pipeline.LanguageKannada:   "kn",
	pipeline.LanguageMalayalam: "ml",
	pipeline.LanguageMarathi:   "mr",
	pipeline.LanguageBengali:   "bn",
	pipeline.LanguageGujarati:  "gu",
	pipeline.LanguagePunjabi:   "pa",
}

var hfCodes = map[pipeline.Language]string{
	pipeline.LanguageHindi:     "hi",
	pipeline.LanguageEnglish:   "en",
	pipeline.LanguageTamil:     "ta",
	pipeline.LanguageTelugu:    "te",
	pipeline.LanguageKannada:   "kn",
	pipeline.LanguageMalayalam: "ml",
	pipeline.LanguageMarathi:   "mr",
	pipeline.LanguageBengali:   "bn",
	pipeline.LanguageGujarati:  "gu",
	pipeline.LanguagePunjabi:   "pa",
}

var azureLocales = map[pipeline.Language]string{
	pipeline.LanguageHindi:     "hi-IN",
	pipeline.LanguageEnglish:   "en-IN",
	pipeline.LanguageTamil:     "ta-IN",
	pipeline.LanguageTelugu:    "te-IN",
	pipeline.LanguageKannada:   "kn-IN",
	pipeline.LanguageMalayalam: "ml-IN",
	pipeline.LanguageMarathi:   "mr-IN",
	pipeline.LanguageBengali:   "bn-IN",
	pipeline.LanguageGujarati:  "gu-IN",
	pipeline.LanguagePunjabi:   "pa-IN",
}

var azureVoices = map[pipeline.Language]string{
	pipeline.LanguageHindi:     "hi-IN-SwaraNeural",
	pipeline.LanguageEnglish:   "en-IN-NeerjaNeural",
	pipeline.LanguageTamil:     "ta-IN-PallaviNeural",
	pipeline.LanguageTelugu:    "te-IN-ShrutiNeural",
	pipeline.LanguageKannada:   "kn-IN-SapnaNeural",
	pipeline.LanguageMalayalam: "ml-IN-SobhanaNeural",
	pipeline.LanguageMarathi:   "mr-IN-AarohiNeural",
	pipeline.LanguageBengali:   "bn-IN-TanishaaNeural",
	pipeline.LanguageGujarati:  "gu-IN-DhwaniNeural",
	pipeline.LanguagePunjabi:   "pa-IN-OjasNeural",
}
