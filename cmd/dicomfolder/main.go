package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/mrsinham/dicomfolder/cmd/dicomfolder/browser"
	"github.com/mrsinham/dicomfolder/internal/config"
	"github.com/mrsinham/dicomfolder/internal/dicom"
	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/mrsinham/dicomfolder/internal/logger"
	"github.com/mrsinham/dicomfolder/internal/scan"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// version is set at build time via -ldflags
var version = "dev"

// runBrowser is replaced in tests.
var runBrowser = browser.Run

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}

	switch args[0] {
	case "scan":
		return runScan(args[1:], stdout, stderr)
	case "browse":
		return runBrowse(args[1:], stdout, stderr)
	case "forge":
		return runForge(args[1:], stdout, stderr)
	case "--version", "-version", "version":
		fmt.Fprintf(stdout, "dicomfolder %s\n", version)
		return 0
	case "--help", "-help", "-h", "help":
		printHelp(stdout)
		return 0
	}

	fmt.Fprintf(stderr, "Error: unknown command %q\n", args[0])
	printUsage(stderr)
	return 1
}

// parseExit maps a flag parsing error to an exit code. -h is not a failure.
func parseExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 2
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// commonFlags are shared by the commands that scan a folder.
type commonFlags struct {
	configFile string
	saveConfig string
	logLevel   string
	logFormat  string
	extensions stringList
	patterns   stringList
	sniff      bool
	skipHidden bool
	strict     bool
}

func bindCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configFile, "config", "", "Load configuration from YAML file")
	fs.StringVar(&c.saveConfig, "save-config", "", "Save the effective configuration to YAML file")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error, disabled")
	fs.StringVar(&c.logFormat, "log-format", "", "Log format: console or json")
	fs.Var(&c.extensions, "ext", "Candidate file extension (repeatable, default: .dcm)")
	fs.Var(&c.patterns, "glob", "Candidate base name pattern, e.g. 'IM*' (repeatable)")
	fs.BoolVar(&c.sniff, "sniff", false, "Also accept files carrying the DICM preamble")
	fs.BoolVar(&c.skipHidden, "skip-hidden", false, "Ignore hidden files and directories")
	fs.BoolVar(&c.strict, "strict", false, "Reject files with any malformed element")
	return c
}

// resolve loads the configuration file, if any, then applies the flags the
// user actually set on top of it.
func (c *commonFlags) resolve(fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if c.configFile != "" {
		loaded, err := config.Load(c.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	var extensionsSet bool
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Log.Level = c.logLevel
		case "log-format":
			cfg.Log.Format = c.logFormat
		case "ext":
			extensionsSet = true
		case "glob":
			cfg.Scan.Patterns = c.patterns
		case "sniff":
			cfg.Scan.Sniff = c.sniff
		case "skip-hidden":
			cfg.Scan.SkipHidden = c.skipHidden
		case "strict":
			cfg.Scan.Strict = c.strict
		}
	})
	if extensionsSet {
		cfg.Scan.Extensions = nil
		for _, e := range c.extensions {
			for _, part := range strings.Split(e, ",") {
				if part = strings.TrimSpace(part); part != "" {
					cfg.Scan.Extensions = append(cfg.Scan.Extensions, part)
				}
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid options: %w", err)
	}
	if c.saveConfig != "" {
		if err := config.Save(cfg, c.saveConfig); err != nil {
			return cfg, fmt.Errorf("save config: %w", err)
		}
	}
	return cfg, nil
}

func newScanner(cfg config.Config, log zerolog.Logger, extra ...scan.Option) *scan.Scanner {
	opts := []scan.Option{
		scan.WithMatcher(cfg.Matcher()),
		scan.WithExtractor(dicom.FileExtractor{Strict: cfg.Scan.Strict}),
		scan.WithLogger(log),
		scan.WithSkipHidden(cfg.Scan.SkipHidden),
	}
	return scan.New(append(opts, extra...)...)
}

func runScan(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := bindCommonFlags(fs)
	format := fs.String("format", "text", "Output format: text or json")
	depth := fs.String("depth", "image", "Deepest level printed: patient, study, series, image")
	export := fs.String("export", "", "Also write an xlsx inventory of the hierarchy to this file")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus metrics of the scan to this file")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: scan takes exactly one folder")
		fmt.Fprintln(stderr, "Usage: dicomfolder scan [options] <folder>")
		return 1
	}
	root := fs.Arg(0)

	maxLevel, err := parseDepth(*depth)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *format != "text" && *format != "json" {
		fmt.Fprintf(stderr, "Error: invalid format %q (valid: text, json)\n", *format)
		return 1
	}

	cfg, err := common.resolve(fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg.Log.Output = stderr
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var extra []scan.Option
	reg := prometheus.NewRegistry()
	if *metricsFile != "" {
		extra = append(extra, scan.WithMetrics(scan.NewMetrics(reg)))
	}

	c, report, err := newScanner(cfg, log, extra...).Build(root)
	if *metricsFile != "" {
		if werr := prometheus.WriteToTextfile(*metricsFile, reg); werr != nil {
			fmt.Fprintf(stderr, "Warning: could not write metrics: %v\n", werr)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *export != "" {
		if err := writeInventory(*export, c, report); err != nil {
			fmt.Fprintf(stderr, "Error: export inventory: %v\n", err)
			return 1
		}
	}

	if *format == "json" {
		err = renderJSON(stdout, c, report)
	} else {
		err = renderText(stdout, c, maxLevel)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return 1
	}

	if *format == "text" {
		stats := c.Stats()
		fmt.Fprintf(stderr, "%d patients, %d studies, %d series, %d instances from %d candidate files\n",
			stats.Patients, stats.Studies, stats.Series, stats.Instances, report.Candidates)
		if report.Duplicates > 0 {
			fmt.Fprintf(stderr, "%d duplicate instances (%d with different content)\n", report.Duplicates, report.Conflicts)
		}
		if report.Skipped() > 0 {
			fmt.Fprintf(stderr, "%d files skipped:\n", report.Skipped())
			for _, d := range report.Diagnostics {
				fmt.Fprintf(stderr, "  %s\n", d)
			}
		}
	}
	return 0
}

func runBrowse(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "Error: browse takes at most one folder")
		return 1
	}

	cfg, err := common.resolve(fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	// the terminal belongs to the UI
	cfg.Log.Output = io.Discard
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	scanner := newScanner(cfg, log)
	build := func(root string) (*hierarchy.Collection, *scan.Report, error) {
		return scanner.Build(root)
	}
	if err := runBrowser(fs.Arg(0), build); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runForge(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("forge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outputDir := fs.String("output", "dicom_folder", "Output directory")
	numPatients := fs.Int("patients", 1, "Number of patients")
	numStudies := fs.Int("studies", 1, "Studies per patient")
	numSeries := fs.Int("series", 1, "Series per study")
	numImages := fs.Int("images", 4, "Images per series")
	modality := fs.String("modality", "MR", "Imaging modality: MR or CT")
	malformed := fs.Int("malformed", 0, "Number of extra non-DICOM files with a DICOM extension")
	seed := fs.Int64("seed", 0, "Seed for reproducibility (derived from the output directory if not specified)")
	workers := fs.Int("workers", 0, fmt.Sprintf("Number of parallel workers (default: %d = CPU cores)", runtime.NumCPU()))
	ext := fs.String("ext", "", "Image file extension (default: .dcm, 'none' for bare names)")
	frameSize := fs.Int("frame-size", 64, "Edge of the square pixel frame")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error, disabled")
	var tagFlags stringList
	fs.Var(&tagFlags, "tag", "Set attribute: 'Name=Value' (repeatable, empty value removes it)")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}

	for _, check := range []struct {
		name  string
		value int
	}{
		{"--patients", *numPatients},
		{"--studies", *numStudies},
		{"--series", *numSeries},
		{"--images", *numImages},
	} {
		if check.value <= 0 {
			fmt.Fprintf(stderr, "Error: %s must be > 0\n", check.name)
			return 1
		}
	}
	mod := strings.ToUpper(*modality)
	if mod != "MR" && mod != "CT" {
		fmt.Fprintf(stderr, "Error: invalid modality %q, valid options: MR, CT\n", *modality)
		return 1
	}

	tags, err := dicom.ParseTagOverrides(tagFlags)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	log, err := logger.New(logger.Config{Level: *logLevel, Format: logger.FormatConsole, Output: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	files, err := dicom.Forge(dicom.ForgeOptions{
		OutputDir: *outputDir,
		Seed:      *seed,
		Patients:  dicom.SimpleLayout(*numPatients, *numStudies, *numSeries, *numImages, mod),
		Malformed: *malformed,
		Extension: *ext,
		FrameSize: *frameSize,
		Workers:   *workers,
		Tags:      tags,
		ProgressCallback: func(current, total int) {
			log.Debug().Int("current", current).Int("total", total).Msg("forged file")
		},
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error forging folder: %v\n", err)
		return 1
	}

	log.Info().Str("output", *outputDir).Int("files", len(files)).Msg("forge complete")
	fmt.Fprintf(stdout, "✓ Forged %d files\n", len(files))
	fmt.Fprintf(stdout, "  Folder: %s\n", *outputDir)
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  dicomfolder scan [options] <folder>")
	fmt.Fprintln(w, "  dicomfolder browse [options] [folder]")
	fmt.Fprintln(w, "  dicomfolder forge [options]")
	fmt.Fprintln(w, "\nRun 'dicomfolder --help' for details.")
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "dicomfolder")
	fmt.Fprintln(w, "===========")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Organize a folder of DICOM files into a Patient / Study / Series / Image tree.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  scan <folder>         Print the hierarchy found under folder")
	fmt.Fprintln(w, "  browse [folder]       Walk the hierarchy interactively and run a series")
	fmt.Fprintln(w, "  forge                 Write a sample folder of synthetic DICOM files")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Scan and browse options:")
	fmt.Fprintln(w, "  --config <FILE>       Load configuration from YAML file")
	fmt.Fprintln(w, "  --save-config <FILE>  Save the effective configuration to YAML file")
	fmt.Fprintln(w, "  --ext <EXT>           Candidate extension (repeatable, default: .dcm)")
	fmt.Fprintln(w, "  --glob <PATTERN>      Candidate base name pattern, e.g. 'IM*' (repeatable)")
	fmt.Fprintln(w, "  --sniff               Also accept files carrying the DICM preamble")
	fmt.Fprintln(w, "  --skip-hidden         Ignore hidden files and directories")
	fmt.Fprintln(w, "  --strict              Reject files with any malformed element")
	fmt.Fprintln(w, "  --log-level <LEVEL>   debug, info, warn, error, disabled (default: info)")
	fmt.Fprintln(w, "  --log-format <FMT>    console or json (default: console)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Scan output options:")
	fmt.Fprintln(w, "  --format <FMT>        text or json (default: text)")
	fmt.Fprintln(w, "  --depth <LEVEL>       patient, study, series or image (default: image)")
	fmt.Fprintln(w, "  --export <FILE>       Also write an xlsx inventory (one row per image)")
	fmt.Fprintln(w, "  --metrics-file <FILE> Write Prometheus metrics of the scan (textfile format)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Forge options:")
	fmt.Fprintln(w, "  --output <DIR>        Output directory (default: 'dicom_folder')")
	fmt.Fprintln(w, "  --patients <N>        Number of patients (default: 1)")
	fmt.Fprintln(w, "  --studies <N>         Studies per patient (default: 1)")
	fmt.Fprintln(w, "  --series <N>          Series per study (default: 1)")
	fmt.Fprintln(w, "  --images <N>          Images per series (default: 4)")
	fmt.Fprintln(w, "  --modality <MOD>      MR or CT (default: MR)")
	fmt.Fprintln(w, "  --malformed <N>       Extra non-DICOM files with a DICOM extension")
	fmt.Fprintln(w, "  --ext <EXT>           Image extension (default: .dcm, 'none' for bare names)")
	fmt.Fprintln(w, "  --seed <N>            Seed for reproducibility")
	fmt.Fprintln(w, "  --frame-size <N>      Edge of the square pixel frame (default: 64)")
	fmt.Fprintf(w, "  --workers <N>         Number of parallel workers (default: %d = CPU cores)\n", runtime.NumCPU())
	fmt.Fprintln(w, "  --tag <NAME=VALUE>    Set attribute value (repeatable, empty value removes it)")
	fmt.Fprintln(w, "                        Example: --tag \"PatientName=Doe^Jane\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Attributes:")
	for _, a := range dicom.Attributes() {
		key := ""
		if a.Key {
			key = " (key)"
		}
		fmt.Fprintf(w, "  %-24s %-8s %s%s\n", a.Name, a.Level, a.Tag, key)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  --help                Show this help message")
	fmt.Fprintln(w, "  --version             Show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  # Forge 2 patients with 3 series of 10 images and 2 broken files")
	fmt.Fprintln(w, "  dicomfolder forge --output sample --patients 2 --series 3 --images 10 --malformed 2")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Print the hierarchy down to series")
	fmt.Fprintln(w, "  dicomfolder scan --depth series sample")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Accept extension-less files named IM*")
	fmt.Fprintln(w, "  dicomfolder scan --glob 'IM*' /mnt/cdrom")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Browse interactively")
	fmt.Fprintln(w, "  dicomfolder browse sample")
}
