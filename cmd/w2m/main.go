package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minz/w2m/pkg/decode"
	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/translate"
	"github.com/minz/w2m/pkg/version"
)

var (
	emitFormat      string
	outputFile      string
	debug           bool
	listEmitters    bool
	showVersion     bool
	showVersionFull bool
)

var emitters = []string{"masm", "json"}

var rootCmd = &cobra.Command{
	Use:   "w2m [file.wasm]",
	Short: "w2m " + version.GetVersion() + " - WebAssembly to Miden Assembly compiler",
	Long: `w2m translates a WebAssembly 1.0 module into Miden Assembly (MASM)
for execution on the Miden zero-knowledge VM.

Only the integer core of Wasm 1.0 is supported: i32/i64 arithmetic,
structured control flow, linear memory, globals, and calls through a
fixed WASI-like import registry. Floating point, tables/indirect calls,
multiple memories, memory.grow, and SIMD are rejected at decode time.

EXAMPLES:
  w2m hello.wasm                  # emit hello.masm next to the input
  w2m hello.wasm -o out.masm      # emit to a specific path
  w2m hello.wasm --emit=json      # emit the MASM AST as JSON instead
  w2m --list-emitters             # list supported --emit values`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(version.GetVersion())
			return nil
		}
		if showVersionFull {
			fmt.Println(version.GetFullVersion())
			return nil
		}
		if listEmitters {
			fmt.Println("Available --emit formats:")
			for _, e := range emitters {
				fmt.Printf("  - %s\n", e)
			}
			return nil
		}
		if len(args) == 0 {
			return cmd.Help()
		}
		return runCompile(args[0])
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().BoolVar(&showVersionFull, "version-full", false, "show full version info")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: input with .masm/.json extension)")
	rootCmd.Flags().StringVar(&emitFormat, "emit", "masm", "output format: masm or json")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&listEmitters, "list-emitters", false, "list supported --emit formats")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if debug {
		l, _ := zap.NewDevelopment()
		return l
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	l, _ := cfg.Build()
	return l
}

func runCompile(sourceFile string) error {
	logger := newLogger()
	defer logger.Sync()

	if emitFormat != "masm" && emitFormat != "json" {
		return fmt.Errorf("unknown --emit format %q (want masm or json)", emitFormat)
	}

	logger.Info("decoding", zap.String("file", sourceFile))
	f, err := os.Open(sourceFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", sourceFile, err)
	}
	defer f.Close()

	m, err := decode.Decode(f)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	logger.Info("translating",
		zap.Int("functions", len(m.Functions)),
		zap.Int("imports", len(m.Imports)),
		zap.Int("globals", len(m.Globals)),
	)
	mod, errs := translate.Translate(m)
	if len(errs) > 0 {
		for _, e := range errs {
			logger.Error("translate", zap.String("kind", string(e.Kind)), zap.Error(e))
		}
		return fmt.Errorf("translation failed with %d error(s)", len(errs))
	}

	out := outputFile
	if out == "" {
		out = defaultOutputPath(sourceFile, emitFormat)
	}
	logger.Info("emitting", zap.String("format", emitFormat), zap.String("out", out))

	var text string
	switch emitFormat {
	case "masm":
		text = masm.Print(mod)
	case "json":
		b, err := json.MarshalIndent(mod, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		text = string(b) + "\n"
	}

	if out == "-" {
		_, err = fmt.Print(text)
		return err
	}
	return os.WriteFile(out, []byte(text), 0o644)
}

func defaultOutputPath(sourceFile, format string) string {
	ext := ".masm"
	if format == "json" {
		ext = ".json"
	}
	trimmed := sourceFile
	for _, suffix := range []string{".wasm", ".wat"} {
		if len(trimmed) > len(suffix) && trimmed[len(trimmed)-len(suffix):] == suffix {
			trimmed = trimmed[:len(trimmed)-len(suffix)]
			break
		}
	}
	return trimmed + ext
}
