package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockquant/internal/store"
	"github.com/samcharles93/blockquant/pkg/blockquant"
)

func quantizeCmd() *cli.Command {
	var (
		inPath   string
		outPath  string
		compress bool
	)

	flags := append(quantFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "in",
			Aliases:     []string{"i"},
			Usage:       "path to the input model store",
			Required:    true,
			Destination: &inPath,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "path for the quantised model store",
			Required:    true,
			Destination: &outPath,
		},
		&cli.BoolFlag{
			Name:        "zstd",
			Usage:       "zstd-compress the output data blob",
			Destination: &compress,
		},
	)

	return &cli.Command{
		Name:  "quantize",
		Usage: "Quantise a model store to block-wise INT4/INT8",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyQuantConfig(cmd, LoadConfig(), &compress)
			log := buildLogger()

			cfg := blockquant.Config{BlockSize: int(blockSize), Bits: int(bits)}
			if err := cfg.Validate(); err != nil {
				return err
			}

			in, err := store.OpenDir(inPath)
			if err != nil {
				return fmt.Errorf("open input store: %w", err)
			}
			defer func() { _ = in.Close() }()

			meta := store.Meta{Bits: cfg.Bits, BlockSize: cfg.BlockSize}
			if compress {
				meta.Compression = store.CompressionZstd
			}
			w := store.NewDirWriter(outPath, meta)

			log.Info("quantising model", "in", inPath, "out", outPath, "bits", cfg.Bits, "block_size", cfg.BlockSize)
			stats, err := blockquant.QuantiseModel(ctx, in, w, cfg, nil, func(rep blockquant.TensorReport) {
				if rep.Quantised {
					log.Info("quantised", "tensor", rep.Name, "elements", rep.Elements,
						"packed_bytes", rep.PackedBytes, "scale_bytes", rep.ScaleBytes)
				} else {
					log.Debug("kept", "tensor", rep.Name, "elements", rep.Elements, "rule", rep.Rule)
				}
			})
			if err != nil {
				return err
			}

			printStats(stats, cfg.Bits)
			return nil
		},
	}
}

func printStats(s blockquant.Stats, bits int) {
	fmt.Printf("tensors:            %d (%d quantised, %d kept)\n",
		s.TotalTensors, s.QuantisedTensors, s.KeptTensors)
	fmt.Printf("original size:      %s\n", formatBytes(uint64(s.OriginalBytes)))
	fmt.Printf("packed weights:     %s (INT%d)\n", formatBytes(uint64(s.PackedBytes)), bits)
	fmt.Printf("scale factors:      %s\n", formatBytes(uint64(s.ScaleBytes)))
	fmt.Printf("kept tensors:       %s\n", formatBytes(uint64(s.KeptBytes)))
	fmt.Printf("compression ratio:  %.2fx\n", s.CompressionRatio())
}
