// Command ocr prints the JSON OCR record for one or more images.
//
//	ocr [flags] image.jpg [more.png ...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tendant/simple-content-ocr/internal/config"
	"github.com/tendant/simple-content-ocr/internal/logging"
	"github.com/tendant/simple-content-ocr/pkg/ocr"
	"github.com/tendant/simple-content-ocr/pkg/ocr/tesseract"
)

// Exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitUsage        = 2
	exitInvalidImage = 3
)

type recognizerFactory func(tessdataPrefix string) ocr.Recognizer

func newTesseract(prefix string) ocr.Recognizer {
	return tesseract.New(tesseract.WithTessdataPrefix(prefix))
}

func main() {
	config.LoadDotEnv()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, newTesseract))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, newRecognizer recognizerFactory) int {
	fs := flag.NewFlagSet("ocr", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		languages = fs.String("languages", "", `language pair as "code:Name,code:Name" (default "hin:Hindi,eng:English")`)
		psm       = fs.Int("psm", ocr.DefaultPageSegMode, "page segmentation mode")
		timeout   = fs.Duration("timeout", 0, "recognition timeout, 0 for none")
		tessdata  = fs.String("tessdata", os.Getenv("TESSDATA_PREFIX"), "directory holding traineddata files")
		verbose   = fs.Bool("v", false, "debug logging")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: ocr [flags] image [image ...]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	logger := logging.New(logging.Sink(stderr))
	defer logger.Sync()
	if *verbose {
		logging.SetLevel(logging.LevelDebug)
	} else {
		logging.SetLevel(logging.LevelWarn)
	}

	cfg := ocr.DefaultConfig()
	if *languages != "" {
		langs, err := ocr.ParseLanguages(*languages)
		if err != nil {
			fmt.Fprintf(stderr, "ocr: %v\n", err)
			return exitUsage
		}
		cfg.Languages = langs
	}
	cfg.Mode.PageSegMode = *psm
	cfg.RecognitionTimeout = *timeout
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "ocr: %v\n", err)
		return exitUsage
	}

	p := ocr.NewPipeline(newRecognizer(*tessdata), ocr.WithConfig(cfg), ocr.WithLogger(logger))

	code := exitOK
	for _, path := range fs.Args() {
		start := time.Now()
		record, err := p.RunFile(ctx, path)
		if err != nil {
			fmt.Fprintf(stderr, "ocr: %s: %v\n", path, err)
			// exit codes only escalate, any other failure outranks invalid images
			switch {
			case !errors.Is(err, ocr.ErrInvalidImage):
				code = exitFailure
			case code == exitOK:
				code = exitInvalidImage
			}
			continue
		}
		logger.Debugf("%s done in %s", path, time.Since(start))

		if err := record.Encode(stdout); err != nil {
			fmt.Fprintf(stderr, "ocr: %v\n", err)
			return exitFailure
		}
	}
	return code
}
