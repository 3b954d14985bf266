package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"voice-translator/cmd/translator/apis/azure"
	"voice-translator/cmd/translator/apis/google"
	"voice-translator/cmd/translator/apis/hf"
	"voice-translator/cmd/translator/apis/whisper.cpp"
	"voice-translator/cmd/translator/config"
	"voice-translator/cmd/translator/pipeline"
	"voice-translator/cmd/translator/service"
	"voice-translator/cmd/translator/vad"
	"voice-translator/cmd/translator/watcher"

	"github.com/joho/godotenv"
)

const (
	stopTimeout = 30 * time.Second

	vadModelFile = "silero_vad.onnx"
)

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		if source.File == "" {
			// Log from a dependency.
			if pc, file, line, ok := runtime.Caller(7); ok {
				if f := runtime.FuncForPC(pc); f != nil {
					source.File = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file)
					source.Line = line
				}
			}
		} else {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

// buildRegistry instantiates only the backends named in the configured
// chains so unused credentials or model files are never required.
func buildRegistry(cfg config.TranslatorConfig) (*pipeline.Registry, func(), error) {
	reg := pipeline.NewRegistry()
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.RecognizeBackends.Contains(config.BackendWhisperCPP) {
		modelFile := filepath.Join(cfg.ModelsDir, "ggml-"+string(cfg.ModelSize)+".bin")
		wctx, err := whisper.NewContext(whisper.Config{
			ModelFile:  modelFile,
			NumThreads: cfg.NumThreads,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() {
			if err := wctx.Destroy(); err != nil {
				slog.Error("failed to destroy whisper context", slog.String("err", err.Error()))
			}
		})
		if err := reg.RegisterRecognizer(config.BackendWhisperCPP, wctx, whisperCodes); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	if cfg.RecognizeBackends.Contains(config.BackendAzure) {
		rec, err := azure.NewSpeechRecognizer(azure.SpeechRecognizerConfig{
			SpeechKey:    cfg.AzureSpeechKey,
			SpeechRegion: cfg.AzureSpeechRegion,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := reg.RegisterRecognizer(config.BackendAzure, rec, azureLocales); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	var hfClient *hf.Client
	if cfg.RecognizeBackends.Contains(config.BackendHF) || cfg.TranslateBackends.Contains(config.BackendHF) {
		var err error
		hfClient, err = hf.NewClient(hf.Config{
			BaseURL: cfg.HFAPIURL,
			Token:   cfg.HFAPIToken,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	if cfg.RecognizeBackends.Contains(config.BackendHF) {
		if err := reg.RegisterRecognizer(config.BackendHF, hfClient, hfCodes); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	if cfg.TranslateBackends.Contains(config.BackendGoogle) {
		tr := google.NewTranslator(google.TranslatorConfig{})
		if err := reg.RegisterTranslator(config.BackendGoogle, tr, googleCodes); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	if cfg.TranslateBackends.Contains(config.BackendHF) {
		if err := reg.RegisterTranslator(config.BackendHF, hfClient, hfCodes); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	if cfg.SynthesizeBackends.Contains(config.BackendAzure) {
		syn, err := azure.NewSpeechSynthesizer(azure.SpeechSynthesizerConfig{
			SpeechKey:    cfg.AzureSpeechKey,
			SpeechRegion: cfg.AzureSpeechRegion,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := reg.RegisterSynthesizer(config.BackendAzure, syn, azureVoices); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	if cfg.SynthesizeBackends.Contains(config.BackendGoogle) {
		syn := google.NewSynthesizer(google.SynthesizerConfig{})
		if err := reg.RegisterSynthesizer(config.BackendGoogle, syn, googleCodes); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	return reg, cleanup, nil
}

// speechGate returns a VAD backed gate when the model file is present in
// ModelsDir, nil otherwise. The gate is an optimization, not a requirement.
func speechGate(cfg config.TranslatorConfig) pipeline.SpeechGate {
	modelPath := filepath.Join(cfg.ModelsDir, vadModelFile)
	if _, err := os.Stat(modelPath); err != nil {
		slog.Info("VAD model not found, speech gate disabled", slog.String("path", modelPath))
		return nil
	}

	gate, err := vad.NewGate(vad.Config{ModelPath: modelPath})
	if err != nil {
		slog.Error("failed to create speech gate", slog.String("err", err.Error()))
		return nil
	}

	slog.Info("speech gate enabled", slog.String("path", modelPath))
	return gate
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to load env file", slog.String("err", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		slog.Error("invalid config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	reg, cleanup, err := buildRegistry(cfg)
	if err != nil {
		slog.Error("failed to build backend registry", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	pcfg := pipeline.Config{
		RecognizeChain:  cfg.RecognizeBackends.List(),
		TranslateChain:  cfg.TranslateBackends.List(),
		SynthesizeChain: cfg.SynthesizeBackends.List(),
		CallTimeout:     time.Duration(cfg.CallTimeoutSec) * time.Second,
		Gate:            speechGate(cfg),
	}

	svc, err := service.New(service.Config{
		ListenAddr: cfg.ListenAddr,
		DataDir:    cfg.DataDir,
	}, reg, pcfg)
	if err != nil {
		slog.Error("failed to create service", slog.String("err", err.Error()))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting service", slog.String("addr", cfg.ListenAddr))
		errCh <- svc.Start()
	}()

	var wt *watcher.Watcher
	if cfg.WatchDir != "" {
		src, err := pipeline.ParseLanguage(cfg.WatchSourceLanguage)
		if err != nil {
			slog.Error("invalid watch source language", slog.String("err", err.Error()))
			os.Exit(1)
		}
		dst, err := pipeline.ParseLanguage(cfg.WatchTargetLanguage)
		if err != nil {
			slog.Error("invalid watch target language", slog.String("err", err.Error()))
			os.Exit(1)
		}

		pl, err := pipeline.New(reg, pcfg)
		if err != nil {
			slog.Error("failed to create pipeline", slog.String("err", err.Error()))
			os.Exit(1)
		}

		wt, err = watcher.New(watcher.Config{
			Dir:    cfg.WatchDir,
			Source: src,
			Target: dst,
		}, pl)
		if err != nil {
			slog.Error("failed to create watcher", slog.String("err", err.Error()))
			os.Exit(1)
		}

		go func() {
			if err := wt.Start(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("watcher failed", slog.String("err", err.Error()))
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("service failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
	case <-sig:
		slog.Info("received signal, stopping")
		if wt != nil {
			if err := wt.Stop(); err != nil {
				slog.Error("failed to stop watcher", slog.String("err", err.Error()))
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := svc.Stop(ctx); err != nil {
			slog.Error("failed to stop service", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}

	slog.Info("service has finished, exiting")
}
