package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockquant/internal/store"
	"github.com/samcharles93/blockquant/pkg/blockquant"
)

func inspectCmd() *cli.Command {
	var (
		inPath       string
		showTensors  bool
		showPolicy   bool
		tensorFilter string
		tensorLimit  int
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a blockquant model store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "in",
				Aliases:     []string{"i"},
				Usage:       "path to the model store",
				Required:    true,
				Destination: &inPath,
			},
			&cli.BoolFlag{Name: "tensors", Usage: "list the tensor entries", Value: true, Destination: &showTensors},
			&cli.BoolFlag{Name: "policy", Usage: "show the default policy verdict per tensor", Destination: &showPolicy},
			&cli.StringFlag{Name: "filter", Usage: "substring filter for tensor listing", Destination: &tensorFilter},
			&cli.IntFlag{Name: "limit", Usage: "limit tensor listing (0 = no limit)", Value: 50, Destination: &tensorLimit},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			m, err := store.OpenDir(inPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open store: %v", err), 1)
			}
			defer func() { _ = m.Close() }()

			meta := m.Meta()
			entries := m.Entries()

			section("Store")
			row("path", inPath)
			rowInt("entries", len(entries))
			if meta.Bits != 0 {
				row("quant", fmt.Sprintf("INT%d block_size=%d", meta.Bits, meta.BlockSize))
			}
			if meta.Compression != "" {
				row("compression", meta.Compression)
			}

			printDTypeSummary(entries)

			if showTensors {
				printEntryList(entries, tensorFilter, tensorLimit, showPolicy)
			}

			return nil
		},
	}
}

func printDTypeSummary(entries []blockquant.Entry) {
	section("DTypes")
	counts := map[blockquant.DType]int{}
	sizes := map[blockquant.DType]uint64{}
	var total uint64
	for _, e := range entries {
		counts[e.DType]++
		sizes[e.DType] += uint64(len(e.Data))
		total += uint64(len(e.Data))
	}
	row("data_size", formatBytes(total))
	for _, dt := range []blockquant.DType{
		blockquant.DTypeF32, blockquant.DTypeF16, blockquant.DTypeBF16,
		blockquant.DTypeI8, blockquant.DTypeI4,
	} {
		if counts[dt] == 0 {
			continue
		}
		row("dtype_"+strings.ToLower(string(dt)), fmt.Sprintf("%d (%s)", counts[dt], formatBytes(sizes[dt])))
	}
}

func printEntryList(entries []blockquant.Entry, filter string, limit int, showPolicy bool) {
	section("Entries")
	policy := blockquant.DefaultPolicy()
	printed := 0
	for _, e := range entries {
		if filter != "" && !strings.Contains(e.Name, filter) {
			continue
		}
		line := fmt.Sprintf("%s  dtype=%s shape=%s size=%s",
			e.Name, e.DType, formatShape(e.Shape), formatBytes(uint64(len(e.Data))))
		if showPolicy && !e.DType.Quantised() && !strings.HasSuffix(e.Name, blockquant.ScaleSuffix) {
			if n, err := blockquant.NumElementsOf(e.Shape); err == nil {
				action, rule := policy.Select(e.Name, n)
				line += fmt.Sprintf(" policy=%s (%s)", action, rule)
			}
		}
		fmt.Println(line)
		printed++
		if limit > 0 && printed >= limit {
			break
		}
	}
	if limit > 0 && printed < len(entries) {
		fmt.Printf("... (%d shown of %d)\n", printed, len(entries))
	}
}

func section(title string) {
	line := strings.Repeat("-", len(title)+8)
	fmt.Printf("\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%-16s %s\n", label+":", value)
}

func rowInt(label string, v int) {
	if v == 0 {
		return
	}
	row(label, fmt.Sprintf("%d", v))
}

func formatShape(shape []int) string {
	if len(shape) == 0 {
		return "[]"
	}
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
