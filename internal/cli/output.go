package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/render/nodelink"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatDOT   = "dot"
	formatSVG   = "svg"
)

var validFormats = []string{formatTable, formatJSON, formatDOT, formatSVG}

func validateFormat(f string) error {
	for _, v := range validFormats {
		if f == v {
			return nil
		}
	}
	return fmt.Errorf("invalid format: %s (must be one of: %s)", f, strings.Join(validFormats, ", "))
}

// outputOpts are the flags controlling how a candidate set is written.
type outputOpts struct {
	format   string
	output   string
	detailed bool
}

// write renders pkgs, or doc for json output, to the output file or w.
func (o outputOpts) write(ctx context.Context, w io.Writer, pkgs []*packaging.SourcePackageDependencyInfo, doc any) error {
	var data []byte
	switch o.format {
	case formatJSON:
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		data = append(b, '\n')
	case formatDOT:
		data = []byte(nodelink.ToDOT(pkgs, nodelink.Options{Detailed: o.detailed}))
	case formatSVG:
		svg, err := nodelink.RenderSVG(ctx, nodelink.ToDOT(pkgs, nodelink.Options{Detailed: o.detailed}))
		if err != nil {
			return err
		}
		data = svg
	default:
		data = []byte(renderPackageTable(pkgs) + "\n")
	}

	if o.output == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(o.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", o.output, err)
	}
	printFile(o.output)
	return nil
}

func (o *outputOpts) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.format, "format", "f", formatTable, "output format: table, json, dot, svg")
	flags.StringVarP(&o.output, "output", "o", "", "write the result to a file instead of stdout")
	flags.BoolVar(&o.detailed, "detailed", false, "include sources in dot and svg output")
}
