// axi-demo promotes a .axi module into an accepted plane and commits a
// sample evidence chunk onto its WAL. It exists to exercise the
// promote/commit/build pipeline end to end; it is not a maintained
// command-line front end.
//
// Usage:
//
//	axi-demo promote <accepted-dir> <module-file> [message]
//	axi-demo commit <accepted-dir> <chunk-text> [about-type] [about-name]
//	axi-demo build <accepted-dir> <ref> <out-file>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/axiograph/axiograph"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  axi-demo promote <accepted-dir> <module-file> [message]")
		fmt.Fprintln(os.Stderr, "  axi-demo commit <accepted-dir> <chunk-text> [about-type] [about-name]")
		fmt.Fprintln(os.Stderr, "  axi-demo build <accepted-dir> <ref> <out-file>")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	dir := os.Args[2]

	switch os.Args[1] {
	case "promote":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "promote requires a module file")
			os.Exit(1)
		}
		text, err := os.ReadFile(os.Args[3]) // #nosec G304 - operator-supplied path
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading %s: %v\n", os.Args[3], err)
			os.Exit(1)
		}
		message := ""
		if len(os.Args) > 4 {
			message = os.Args[4]
		}
		cfg := axiograph.LoadConfig(dir)
		id, err := axiograph.Promote(dir, string(text), message, cfg.QualityProfile, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "promote: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(id))

	case "commit":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "commit requires chunk text")
			os.Exit(1)
		}
		metadata := map[string]string{}
		if len(os.Args) > 4 {
			metadata["about_type"] = os.Args[4]
		}
		if len(os.Args) > 5 {
			metadata["about_name"] = os.Args[5]
		}
		chunks := []axiograph.Chunk{{
			ChunkID:    axiograph.NewChunkID(),
			DocumentID: "axi-demo",
			Text:       os.Args[3],
			Metadata:   metadata,
		}}
		id, err := axiograph.Commit(dir, "latest", chunks, nil, nil, "axi-demo commit", logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "commit: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(id))

	case "build":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "build requires a ref and an output path")
			os.Exit(1)
		}
		if err := axiograph.BuildFromSnapshot(dir, os.Args[3], os.Args[4]); err != nil {
			fmt.Fprintf(os.Stderr, "build: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}
