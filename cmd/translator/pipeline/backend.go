package pipeline

import (
	"context"
	"fmt"
)

// Recognizer transcribes an audio clip. langCode is the backend's native
// language code as registered in its code table.
type Recognizer interface {
	Recognize(ctx context.Context, audio AudioBlob, langCode string) (string, error)
}

// Translator converts text between languages, using the backend's native
// codes for both ends.
type Translator interface {
	Translate(ctx context.Context, text, srcCode, dstCode string) (string, error)
}

// Synthesizer renders text as speech. voiceCode is the backend's native
// voice or language identifier for the target language.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceCode string) (AudioBlob, error)
}

// SpeechGate is an optional pre-flight check that can reject audio with no
// speech in it before any recognizer quota is spent.
type SpeechGate interface {
	HasSpeech(audio AudioBlob) (bool, error)
}

type recognizerEntry struct {
	rec   Recognizer
	codes map[Language]string
}

type translatorEntry struct {
	tr    Translator
	codes map[Language]string
}

type synthesizerEntry struct {
	syn    Synthesizer
	voices map[Language]string
}

// Registry holds the configured backends for the three stages, each with its
// own language code table. It is populated once at startup and read-only
// afterwards, so it's safe for concurrent use by multiple invocations.
type Registry struct {
	recognizers  map[string]recognizerEntry
	translators  map[string]translatorEntry
	synthesizers map[string]synthesizerEntry
}

func NewRegistry() *Registry {
	return &Registry{
		recognizers:  make(map[string]recognizerEntry),
		translators:  make(map[string]translatorEntry),
		synthesizers: make(map[string]synthesizerEntry),
	}
}

func (r *Registry) RegisterRecognizer(id string, rec Recognizer, codes map[Language]string) error {
	if id == "" || rec == nil {
		return fmt.Errorf("invalid recognizer registration")
	}
	if _, ok := r.recognizers[id]; ok {
		return fmt.Errorf("recognizer %q already registered", id)
	}
	r.recognizers[id] = recognizerEntry{rec: rec, codes: codes}
	return nil
}

func (r *Registry) RegisterTranslator(id string, tr Translator, codes map[Language]string) error {
	if id == "" || tr == nil {
		return fmt.Errorf("invalid translator registration")
	}
	if _, ok := r.translators[id]; ok {
		return fmt.Errorf("translator %q already registered", id)
	}
	r.translators[id] = translatorEntry{tr: tr, codes: codes}
	return nil
}

func (r *Registry) RegisterSynthesizer(id string, syn Synthesizer, voices map[Language]string) error {
	if id == "" || syn == nil {
		return fmt.Errorf("invalid synthesizer registration")
	}
	if _, ok := r.synthesizers[id]; ok {
		return fmt.Errorf("synthesizer %q already registered", id)
	}
	r.synthesizers[id] = synthesizerEntry{syn: syn, voices: voices}
	return nil
}
