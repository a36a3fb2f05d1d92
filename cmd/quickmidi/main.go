// Command quickmidi analyzes a recorded MIDI performance for structural
// defects and optionally writes back a corrected file, cross-checking
// against a reference audio recording when one is given.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	charmlog "github.com/charmbracelet/log"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/varghele/quickmidi/audioref"
	"github.com/varghele/quickmidi/config"
	"github.com/varghele/quickmidi/engine"
	"github.com/varghele/quickmidi/report"
	"github.com/varghele/quickmidi/timeline"
)

func main() {
	inPath := flag.String("in", "", "input MIDI file")
	audioPath := flag.String("audio", "", "optional reference WAV recording")
	outPath := flag.String("out", "", "output MIDI file for the corrected timeline")
	doFix := flag.Bool("fix", false, "apply automatic corrections")
	configPath := flag.String("config", "", "settings file (default ~/.config/quickmidi/settings.json)")
	jsonOut := flag.Bool("json", false, "print the report as JSON")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: quickmidi -in file.mid [-audio ref.wav] [-fix -out fixed.mid]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := charmlog.New(os.Stderr)
	if *verbose {
		logger.SetLevel(charmlog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, *inPath, *audioPath, *outPath, *configPath, *doFix, *jsonOut); err != nil {
		logger.Error("analysis failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *charmlog.Logger, inPath, audioPath, outPath, configPath string, doFix, jsonOut bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	cfg.Options.Logger = logger

	smfData, err := smf.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inPath, err)
	}
	raw, tempo, tpqn, err := timeline.FromSMF(smfData)
	if err != nil {
		return err
	}
	logger.Debug("midi loaded", "events", len(raw), "tpqn", tpqn)

	var clip *audioref.Clip
	if audioPath != "" {
		clip, err = audioref.LoadWAV(audioPath)
		if err != nil {
			// Soft degrade, same as a failed extraction.
			logger.Warn("reference audio unusable, continuing MIDI-only", "err", err)
			clip = nil
		}
	}

	progress := mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(40))
	bar := progress.AddBar(2,
		mpb.PrependDecorators(decor.Name("Analyzing: ")),
		mpb.AppendDecorators(decor.Percentage()),
	)

	var rep *report.AnalysisReport
	if doFix {
		rep, err = engine.AnalyzeAndFix(ctx, raw, tempo, tpqn, clip, cfg.Options, cfg.Policy)
	} else {
		rep, err = engine.Analyze(ctx, raw, tempo, tpqn, cfg.Options)
	}
	bar.Increment()
	if err != nil {
		bar.Abort(true)
		progress.Wait()
		return err
	}

	if doFix && outPath != "" {
		out := timeline.ToSMF(rep.Corrected, tempo)
		if err := out.WriteFile(outPath); err != nil {
			bar.Abort(true)
			progress.Wait()
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		logger.Info("corrected file written", "path", outPath)
	}
	bar.Increment()
	progress.Wait()

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Print(report.Render(rep))
	return nil
}
