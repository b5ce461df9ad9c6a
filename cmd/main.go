package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	pe "github.com/wanglei-coder/peexport"
)

type options struct {
	filename string
	mode     string
	search   string
	output   string
	json     bool
	noColor  bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	var o options
	fs.StringVar(&o.filename, "filename", "", "Please enter the file path")
	fs.StringVar(&o.mode, "mode", "file", "how to read the image: file, mapped or loaded (windows only)")
	fs.StringVar(&o.search, "search", "", "extra directories to look for the file in, separated by the OS path list separator")
	fs.StringVar(&o.output, "output", "", "write the listing to this file instead of stdout")
	fs.BoolVar(&o.json, "json", false, "print JSON instead of text")
	fs.BoolVar(&o.noColor, "no-color", false, "disable colored output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.filename == "" && fs.NArg() > 0 {
		o.filename = fs.Arg(0)
	}
	if o.filename == "" {
		return nil, errors.New("no file path provided")
	}
	return &o, nil
}

// resolvePath returns name if it exists, otherwise the first match in dirs.
func resolvePath(name string, dirs []string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	if !filepath.IsAbs(name) {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return "", errors.Errorf("%s not found in the working directory or %d search directories", name, len(dirs))
}

func searchDirs(search string) []string {
	var dirs []string
	if search != "" {
		dirs = append(dirs, filepath.SplitList(search)...)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	return dirs
}

// sniff refuses input that does not start like a PE executable.
func sniff(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	return checkFileType(head[:n])
}

func checkFileType(head []byte) error {
	kind, _ := filetype.Match(head)
	if kind.Extension == "exe" {
		return nil
	}
	detected := "data"
	if kind != filetype.Unknown {
		detected = kind.MIME.Value
	}
	return errors.Wrapf(pe.ErrNotAnImage, "input looks like %s", detected)
}

type imageSource interface {
	Image() pe.RawImage
	Close() error
}

func open(filename string, mode pe.Mode) (imageSource, error) {
	if mode == pe.ModeLoaded {
		return pe.LoadModule(filename)
	}
	return pe.OpenMapped(filename, mode)
}

func listExports(filename string, mode pe.Mode) (*pe.ExportTable, error) {
	src, err := open(filename, mode)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return pe.ParseExports(src.Image())
}

func render(w io.Writer, table *pe.ExportTable, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(table, "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	if name := table.ModuleName(); name != "" {
		header := color.New(color.FgCyan, color.Bold)
		if _, err := header.Fprintf(w, "%s\n", name); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, strings.Repeat("=", len(name))); err != nil {
			return err
		}
	}
	return table.WriteText(w)
}

func run(o *options, stdout io.Writer) error {
	mode, err := pe.ParseMode(o.mode)
	if err != nil {
		return err
	}

	filename, err := resolvePath(o.filename, searchDirs(o.search))
	switch {
	case err != nil && mode == pe.ModeLoaded:
		// the system loader has its own search order
		filename = o.filename
	case err != nil:
		return err
	default:
		if err := sniff(filename); err != nil {
			return err
		}
	}

	table, err := listExports(filename, mode)
	if err != nil {
		return errors.WithMessagef(err, "listing exports of %s", filename)
	}

	out := stdout
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return render(out, table, o.json)
}

func main() {
	log.SetFlags(0)

	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if o.noColor || o.json || o.output != "" {
		color.NoColor = true
	}
	log.SetPrefix(color.New(color.FgRed, color.Bold).Sprint("error: "))

	if err := run(o, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
