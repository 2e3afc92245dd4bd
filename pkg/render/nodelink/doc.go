// Package nodelink renders candidate sets as node-link diagrams.
//
// Every gathered candidate becomes a box labelled with its id and version.
// Arrows point from a package to each candidate its dependency range
// accepts, so an id with several surviving versions fans out.
//
// # Usage
//
//	dot := nodelink.ToDOT(plan.Packages, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The DOT source from [ToDOT] can also be saved and processed with the
// external Graphviz tools.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package nodelink
