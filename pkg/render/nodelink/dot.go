package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the producing source to node labels. When false, only
	// the id and version are shown.
	Detailed bool
}

// ToDOT converts a candidate set to Graphviz DOT format. Each candidate is
// a node; each dependency becomes an edge to every candidate of the
// dependency id whose version satisfies the dependency range.
// The resulting DOT string can be rendered using [RenderSVG].
//
// Unlisted candidates are drawn with dashed outlines and grey fill.
func ToDOT(pkgs []*packaging.SourcePackageDependencyInfo, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	byID := make(map[string][]*packaging.SourcePackageDependencyInfo)
	for _, p := range pkgs {
		k := packaging.NormalizeID(p.ID)
		byID[k] = append(byID[k], p)
		fmt.Fprintf(&buf, "  %q [%s];\n", nodeID(p), strings.Join(fmtAttrs(p, opts.Detailed), ", "))
	}

	buf.WriteString("\n")
	for _, p := range pkgs {
		for _, d := range p.Dependencies {
			for _, c := range byID[packaging.NormalizeID(d.ID)] {
				if !d.Range.IsAll() && !d.Range.Satisfies(c.Version) {
					continue
				}
				if d.Range.IsAll() {
					fmt.Fprintf(&buf, "  %q -> %q;\n", nodeID(p), nodeID(c))
				} else {
					fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", nodeID(p), nodeID(c), d.Range.String())
				}
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeID(p *packaging.SourcePackageDependencyInfo) string {
	return p.Identity.Key()
}

func fmtLabel(p *packaging.SourcePackageDependencyInfo, detailed bool) string {
	label := p.ID
	if p.HasVersion() {
		label += "\n" + p.Version.String()
	}
	if detailed && p.Source != "" {
		label += "\n" + p.Source
	}
	return label
}

func fmtAttrs(p *packaging.SourcePackageDependencyInfo, detailed bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(p, detailed))}
	if !p.Listed {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the root svg tag so the drawing scales with
// its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
