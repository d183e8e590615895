package render

import (
	"bytes"
	"context"
	"fmt"
	"k8sviz/internal/formatter"
	"k8sviz/internal/graph"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Format is an output format for a rendered graph.
type Format string

const (
	FormatPNG    Format = "png"
	FormatSVG    Format = "svg"
	FormatPDF    Format = "pdf"
	FormatDOT    Format = "dot"
	FormatJSON   Format = "json"
	FormatCypher Format = "cypher"
)

// DefaultDotBinary is the Graphviz executable used for raster formats.
const DefaultDotBinary = "dot"

var formats = map[Format]bool{
	FormatPNG: true, FormatSVG: true, FormatPDF: true,
	FormatDOT: false, FormatJSON: false, FormatCypher: false,
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := formats[f]; !ok {
		return "", fmt.Errorf("unsupported output format %q", s)
	}
	return f, nil
}

// FormatFromPath infers the format from the file extension, defaulting to PNG.
func FormatFromPath(path string) Format {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "gv" {
		return FormatDOT
	}
	if f, err := ParseFormat(ext); err == nil {
		return f
	}
	return FormatPNG
}

// Rasterized reports whether the format needs the Graphviz binary.
func (f Format) Rasterized() bool {
	return formats[f]
}

// RenderError reports a failure to produce the output file.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Renderer writes a graph to a file.
type Renderer interface {
	Render(ctx context.Context, g *graph.Graph, path string) error
}

// Graphviz renders graphs through DOT. Raster formats are produced by the
// Graphviz binary; dot, json and cypher are written directly.
type Graphviz struct {
	Format    Format
	DotBinary string
}

// NewGraphviz creates a renderer for the given format.
func NewGraphviz(format Format) *Graphviz {
	return &Graphviz{Format: format, DotBinary: DefaultDotBinary}
}

// Render writes g to path. The output is staged in a temporary file next to
// path and renamed into place, so a failed render never leaves a partial file.
func (r *Graphviz) Render(ctx context.Context, g *graph.Graph, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".k8sviz-*")
	if err != nil {
		return &RenderError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if r.Format.Rasterized() {
		tmp.Close()
		err = r.rasterize(ctx, g, tmpName)
	} else {
		err = r.encode(g, tmp)
		if closeErr := tmp.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return &RenderError{Path: path, Err: err}
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		return &RenderError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &RenderError{Path: path, Err: err}
	}
	committed = true
	return nil
}

func (r *Graphviz) encode(g *graph.Graph, f *os.File) error {
	var (
		out string
		err error
	)
	switch r.Format {
	case FormatDOT:
		out, err = formatter.ToDOT(g)
	case FormatJSON:
		return formatter.WriteJSON(f, g)
	case FormatCypher:
		out, err = formatter.ToCypher(g)
	default:
		return fmt.Errorf("unsupported output format %q", r.Format)
	}
	if err != nil {
		return err
	}
	_, err = f.WriteString(out)
	return err
}

func (r *Graphviz) rasterize(ctx context.Context, g *graph.Graph, out string) error {
	dot, err := formatter.ToDOT(g)
	if err != nil {
		return err
	}

	bin := r.DotBinary
	if bin == "" {
		bin = DefaultDotBinary
	}
	cmd := exec.CommandContext(ctx, bin, "-T"+string(r.Format), "-o", out)
	cmd.Stdin = strings.NewReader(dot)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s -T%s failed: %w - %s", bin, r.Format, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
