package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

const (
	// defaults
	ModelSizeDefault          = ModelSizeBase
	RecognizeBackendsDefault  = BackendChain(BackendWhisperCPP)
	TranslateBackendsDefault  = BackendChain(BackendGoogle)
	SynthesizeBackendsDefault = BackendChain(BackendAzure + "," + BackendGoogle)
	ListenAddrDefault         = ":8045"
	CallTimeoutSecDefault     = 30
	dataDirDefault            = "/data"
	modelsDirDefault          = "/models"
)

// Backend identifiers usable in the per-stage chains.
const (
	BackendWhisperCPP = "whisper.cpp"
	BackendAzure      = "azure"
	BackendGoogle     = "google"
	BackendHF         = "huggingface"
)

var (
	validRecognizeBackends  = []string{BackendWhisperCPP, BackendAzure, BackendHF}
	validTranslateBackends  = []string{BackendGoogle, BackendHF}
	validSynthesizeBackends = []string{BackendAzure, BackendGoogle}
)

type ModelSize string

const (
	ModelSizeTiny   ModelSize = "tiny"
	ModelSizeBase             = "base"
	ModelSizeSmall            = "small"
	ModelSizeMedium           = "medium"
)

func (s ModelSize) IsValid() bool {
	switch s {
	case ModelSizeTiny, ModelSizeBase, ModelSizeSmall, ModelSizeMedium:
		return true
	default:
		return false
	}
}

// BackendChain is an ordered, comma-separated list of backend identifiers
// tried in order until one succeeds.
type BackendChain string

func (c BackendChain) List() []string {
	var out []string
	for _, el := range strings.Split(string(c), ",") {
		if el = strings.TrimSpace(el); el != "" {
			out = append(out, el)
		}
	}
	return out
}

func (c BackendChain) IsValid(valid []string) error {
	ids := c.List()
	if len(ids) == 0 {
		return fmt.Errorf("chain cannot be empty")
	}
	for _, id := range ids {
		found := false
		for _, v := range valid {
			if id == v {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown backend %q", id)
		}
	}
	return nil
}

func (c BackendChain) Contains(id string) bool {
	for _, el := range c.List() {
		if el == id {
			return true
		}
	}
	return false
}

type TranslatorConfig struct {
	// service config
	ListenAddr string
	DataDir    string
	ModelsDir  string

	// watch mode (optional)
	WatchDir            string
	WatchSourceLanguage string
	WatchTargetLanguage string

	// pipeline config
	RecognizeBackends  BackendChain
	TranslateBackends  BackendChain
	SynthesizeBackends BackendChain
	CallTimeoutSec     int
	NumThreads         int
	ModelSize          ModelSize

	// backend credentials
	AzureSpeechKey    string
	AzureSpeechRegion string
	HFAPIURL          string
	HFAPIToken        string
}

func (cfg TranslatorConfig) IsValid() error {
	if cfg == (TranslatorConfig{}) {
		return fmt.Errorf("config cannot be empty")
	}

	if cfg.ListenAddr == "" {
		return fmt.Errorf("ListenAddr cannot be empty")
	}

	if err := cfg.RecognizeBackends.IsValid(validRecognizeBackends); err != nil {
		return fmt.Errorf("RecognizeBackends parsing failed: %w", err)
	}
	if err := cfg.TranslateBackends.IsValid(validTranslateBackends); err != nil {
		return fmt.Errorf("TranslateBackends parsing failed: %w", err)
	}
	if err := cfg.SynthesizeBackends.IsValid(validSynthesizeBackends); err != nil {
		return fmt.Errorf("SynthesizeBackends parsing failed: %w", err)
	}

	if cfg.RecognizeBackends.Contains(BackendWhisperCPP) && !cfg.ModelSize.IsValid() {
		return fmt.Errorf("ModelSize value is not valid")
	}

	if cfg.usesAzure() {
		if cfg.AzureSpeechKey == "" {
			return fmt.Errorf("AzureSpeechKey cannot be empty")
		}
		if cfg.AzureSpeechRegion == "" {
			return fmt.Errorf("AzureSpeechRegion cannot be empty")
		}
	}

	if cfg.usesHF() && cfg.HFAPIURL == "" {
		return fmt.Errorf("HFAPIURL cannot be empty")
	}

	if cfg.WatchDir != "" {
		if cfg.WatchSourceLanguage == "" {
			return fmt.Errorf("WatchSourceLanguage cannot be empty when WatchDir is set")
		}
		if cfg.WatchTargetLanguage == "" {
			return fmt.Errorf("WatchTargetLanguage cannot be empty when WatchDir is set")
		}
	}

	if cfg.CallTimeoutSec < 1 || cfg.CallTimeoutSec > 600 {
		return fmt.Errorf("CallTimeoutSec should be in the range [1, 600]")
	}

	if numCPU := runtime.NumCPU(); cfg.NumThreads < 1 || cfg.NumThreads > numCPU {
		return fmt.Errorf("NumThreads should be in the range [1, %d]", numCPU)
	}

	return nil
}

func (cfg TranslatorConfig) usesAzure() bool {
	return cfg.RecognizeBackends.Contains(BackendAzure) || cfg.SynthesizeBackends.Contains(BackendAzure)
}

func (cfg TranslatorConfig) usesHF() bool {
	return cfg.RecognizeBackends.Contains(BackendHF) || cfg.TranslateBackends.Contains(BackendHF)
}

func (cfg *TranslatorConfig) SetDefaults() {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ListenAddrDefault
	}

	if cfg.DataDir == "" {
		cfg.DataDir = dataDirDefault
	}

	if cfg.ModelsDir == "" {
		cfg.ModelsDir = modelsDirDefault
	}

	if cfg.RecognizeBackends == "" {
		cfg.RecognizeBackends = RecognizeBackendsDefault
	}

	if cfg.TranslateBackends == "" {
		cfg.TranslateBackends = TranslateBackendsDefault
	}

	if cfg.SynthesizeBackends == "" {
		cfg.SynthesizeBackends = SynthesizeBackendsDefault
	}

	if cfg.ModelSize == "" {
		cfg.ModelSize = ModelSizeDefault
	}

	if cfg.CallTimeoutSec == 0 {
		cfg.CallTimeoutSec = CallTimeoutSecDefault
	}

	if cfg.NumThreads == 0 {
		cfg.NumThreads = max(1, runtime.NumCPU()/2)
	}
}

func (cfg TranslatorConfig) ToEnv() []string {
	if cfg == (TranslatorConfig{}) {
		return nil
	}

	return []string{
		fmt.Sprintf("LISTEN_ADDR=%s", cfg.ListenAddr),
		fmt.Sprintf("DATA_DIR=%s", cfg.DataDir),
		fmt.Sprintf("MODELS_DIR=%s", cfg.ModelsDir),
		fmt.Sprintf("WATCH_DIR=%s", cfg.WatchDir),
		fmt.Sprintf("WATCH_SOURCE_LANGUAGE=%s", cfg.WatchSourceLanguage),
		fmt.Sprintf("WATCH_TARGET_LANGUAGE=%s", cfg.WatchTargetLanguage),
		fmt.Sprintf("RECOGNIZE_BACKENDS=%s", cfg.RecognizeBackends),
		fmt.Sprintf("TRANSLATE_BACKENDS=%s", cfg.TranslateBackends),
		fmt.Sprintf("SYNTHESIZE_BACKENDS=%s", cfg.SynthesizeBackends),
		fmt.Sprintf("CALL_TIMEOUT_SEC=%d", cfg.CallTimeoutSec),
		fmt.Sprintf("NUM_THREADS=%d", cfg.NumThreads),
		fmt.Sprintf("MODEL_SIZE=%s", cfg.ModelSize),
		fmt.Sprintf("AZURE_SPEECH_KEY=%s", cfg.AzureSpeechKey),
		fmt.Sprintf("AZURE_SPEECH_REGION=%s", cfg.AzureSpeechRegion),
		fmt.Sprintf("HF_API_URL=%s", cfg.HFAPIURL),
		fmt.Sprintf("HF_API_TOKEN=%s", cfg.HFAPIToken),
	}
}

func (cfg TranslatorConfig) ToMap() map[string]any {
	if cfg == (TranslatorConfig{}) {
		return nil
	}

	return map[string]any{
		"listen_addr":           cfg.ListenAddr,
		"data_dir":              cfg.DataDir,
		"models_dir":            cfg.ModelsDir,
		"watch_dir":             cfg.WatchDir,
		"watch_source_language": cfg.WatchSourceLanguage,
		"watch_target_language": cfg.WatchTargetLanguage,
		"recognize_backends":    cfg.RecognizeBackends,
		"translate_backends":    cfg.TranslateBackends,
		"synthesize_backends":   cfg.SynthesizeBackends,
		"call_timeout_sec":      cfg.CallTimeoutSec,
		"num_threads":           cfg.NumThreads,
		"model_size":            cfg.ModelSize,
		"azure_speech_key":      cfg.AzureSpeechKey,
		"azure_speech_region":   cfg.AzureSpeechRegion,
		"hf_api_url":            cfg.HFAPIURL,
		"hf_api_token":          cfg.HFAPIToken,
	}
}

func (cfg *TranslatorConfig) FromMap(m map[string]any) *TranslatorConfig {
	cfg.ListenAddr, _ = m["listen_addr"].(string)
	cfg.DataDir, _ = m["data_dir"].(string)
	cfg.ModelsDir, _ = m["models_dir"].(string)
	cfg.WatchDir, _ = m["watch_dir"].(string)
	cfg.WatchSourceLanguage, _ = m["watch_source_language"].(string)
	cfg.WatchTargetLanguage, _ = m["watch_target_language"].(string)
	cfg.AzureSpeechKey, _ = m["azure_speech_key"].(string)
	cfg.AzureSpeechRegion, _ = m["azure_speech_region"].(string)
	cfg.HFAPIURL, _ = m["hf_api_url"].(string)
	cfg.HFAPIToken, _ = m["hf_api_token"].(string)

	// Numeric values can either be int or float64 depending on whether
	// they have been previously marshaled or not.
	for k, dst := range map[string]*int{
		"call_timeout_sec": &cfg.CallTimeoutSec,
		"num_threads":      &cfg.NumThreads,
	} {
		switch v := m[k].(type) {
		case int:
			*dst = v
		case float64:
			*dst = int(v)
		}
	}

	for k, dst := range map[string]*BackendChain{
		"recognize_backends":  &cfg.RecognizeBackends,
		"translate_backends":  &cfg.TranslateBackends,
		"synthesize_backends": &cfg.SynthesizeBackends,
	} {
		if chain, ok := m[k].(string); ok {
			*dst = BackendChain(chain)
		} else {
			*dst, _ = m[k].(BackendChain)
		}
	}

	if modelSize, ok := m["model_size"].(string); ok {
		cfg.ModelSize = ModelSize(modelSize)
	} else {
		cfg.ModelSize, _ = m["model_size"].(ModelSize)
	}

	return cfg
}

func FromEnv() (TranslatorConfig, error) {
	var cfg TranslatorConfig
	cfg.ListenAddr = os.Getenv("LISTEN_ADDR")
	cfg.DataDir = os.Getenv("DATA_DIR")
	cfg.ModelsDir = os.Getenv("MODELS_DIR")
	cfg.WatchDir = os.Getenv("WATCH_DIR")
	cfg.WatchSourceLanguage = os.Getenv("WATCH_SOURCE_LANGUAGE")
	cfg.WatchTargetLanguage = os.Getenv("WATCH_TARGET_LANGUAGE")
	cfg.RecognizeBackends = BackendChain(os.Getenv("RECOGNIZE_BACKENDS"))
	cfg.TranslateBackends = BackendChain(os.Getenv("TRANSLATE_BACKENDS"))
	cfg.SynthesizeBackends = BackendChain(os.Getenv("SYNTHESIZE_BACKENDS"))
	cfg.CallTimeoutSec, _ = strconv.Atoi(os.Getenv("CALL_TIMEOUT_SEC"))
	cfg.NumThreads, _ = strconv.Atoi(os.Getenv("NUM_THREADS"))
	cfg.AzureSpeechKey = os.Getenv("AZURE_SPEECH_KEY")
	cfg.AzureSpeechRegion = os.Getenv("AZURE_SPEECH_REGION")
	cfg.HFAPIURL = strings.TrimSuffix(os.Getenv("HF_API_URL"), "/")
	cfg.HFAPIToken = os.Getenv("HF_API_TOKEN")

	if val := os.Getenv("MODEL_SIZE"); val != "" {
		cfg.ModelSize = ModelSize(val)
	}

	return cfg, nil
}
