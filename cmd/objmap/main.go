package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"gopkg.in/yaml.v3"

	"github.com/reoring/objmap"
	"github.com/reoring/objmap/format/cbor"
	"github.com/reoring/objmap/format/json"
	fyaml "github.com/reoring/objmap/format/yaml"
	eng "github.com/reoring/objmap/internal/engine"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "convert":
		return convertCmd(args[1:], stdin, stdout, stderr)
	case "config":
		return configCmd(args[1:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "objmap CLI\n\nUsage:\n  objmap convert -from json|yaml|cbor -to json|yaml|cbor [-in file] [-out file] [-config file] [-indent s] [-dump]\n  objmap config -f file\n\nNotes:\n  - convert streams the document tokens from one format to the other, enforcing maxDepth and failOnDuplicateKeys from the config.\n  - config validates a configuration file and prints it with defaults filled in.")
}

func formatByName(name, indent string) (objmap.Format, error) {
	switch strings.ToLower(name) {
	case "json":
		return json.Format{Indent: indent}, nil
	case "yaml", "yml":
		return fyaml.Format{Indent: len(indent)}, nil
	case "cbor":
		return cbor.Format{}, nil
	}
	return nil, fmt.Errorf("unknown format %q", name)
}

func convertCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var from, to, in, out, cfgPath, indent string
	var dump bool
	fs.StringVar(&from, "from", "json", "input format")
	fs.StringVar(&to, "to", "json", "output format")
	fs.StringVar(&in, "in", "", "input file (default stdin)")
	fs.StringVar(&out, "out", "", "output file (default stdout)")
	fs.StringVar(&cfgPath, "config", "", "YAML configuration file")
	fs.StringVar(&indent, "indent", "", "indent unit for text formats")
	fs.BoolVar(&dump, "dump", false, "dump the decoded document to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	src, err := formatByName(from, "")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	dst, err := formatByName(to, indent)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	var cfg objmap.Config
	if cfgPath != "" {
		if cfg, err = objmap.LoadConfigFile(cfgPath); err != nil {
			fmt.Fprintf(stderr, "config: %v\n", err)
			return 1
		}
	}

	r := stdin
	if in != "" {
		f, err := os.Open(in)
		if err != nil {
			fmt.Fprintf(stderr, "opening input: %v\n", err)
			return 1
		}
		defer f.Close()
		r = f
	}

	opt := eng.GuardOptions{MaxDepth: cfg.MaxDepth}
	switch {
	case cfg.MaxDepth == 0:
		opt.MaxDepth = objmap.DefaultMaxDepth
	case cfg.MaxDepth < 0:
		opt.MaxDepth = 0
	}
	if cfg.FailOnDuplicateKeys {
		opt.OnDuplicate = eng.DupError
	}
	var doc objmap.TokenStream
	if err := eng.Pipe(eng.NewGuard(src.NewReader(r), opt), &doc); err != nil {
		fmt.Fprintf(stderr, "reading %s: %v\n", src.Name(), err)
		return 1
	}
	if dump {
		v, err := eng.DecodeAny(&doc, cfg.UseNumber)
		if err != nil {
			fmt.Fprintf(stderr, "reading %s: %v\n", src.Name(), err)
			return 1
		}
		spew.Fdump(stderr, v)
	}

	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			fmt.Fprintf(stderr, "creating output: %v\n", err)
			return 1
		}
		defer f.Close()
		w = f
	}
	dw := dst.NewWriter(w)
	if err := doc.WriteTo(dw); err != nil {
		fmt.Fprintf(stderr, "writing %s: %v\n", dst.Name(), err)
		return 1
	}
	if err := dw.Close(); err != nil {
		fmt.Fprintf(stderr, "writing %s: %v\n", dst.Name(), err)
		return 1
	}
	if dst.Name() == "json" {
		fmt.Fprintln(w)
	}
	return 0
}

func configCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var path string
	fs.StringVar(&path, "f", "", "configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if path == "" {
		fs.Usage()
		return 2
	}
	cfg, err := objmap.LoadConfigFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if err := enc.Close(); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	return 0
}
