package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockquant/internal/store"
	"github.com/samcharles93/blockquant/pkg/blockquant"
)

func dequantizeCmd() *cli.Command {
	var (
		inPath  string
		outPath string
	)

	flags := append(loggingFlags(),
		&cli.StringFlag{
			Name:        "in",
			Aliases:     []string{"i"},
			Usage:       "path to the quantised model store",
			Required:    true,
			Destination: &inPath,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "path for the reconstructed float32 store",
			Required:    true,
			Destination: &outPath,
		},
	)

	return &cli.Command{
		Name:  "dequantize",
		Usage: "Reconstruct float32 tensors from a quantised model store",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyLoggingConfig(cmd, LoadConfig())
			log := buildLogger()

			in, err := store.OpenDir(inPath)
			if err != nil {
				return fmt.Errorf("open input store: %w", err)
			}
			defer func() { _ = in.Close() }()

			meta := in.Meta()
			if meta.BlockSize == 0 {
				meta.BlockSize = blockquant.DefaultBlockSize
			}

			tensors, err := blockquant.ReconstructEntries(in.Entries(), meta.BlockSize)
			if err != nil {
				return err
			}

			entries := make([]blockquant.Entry, 0, len(tensors))
			for _, t := range tensors {
				log.Debug("reconstructed", "tensor", t.Name, "elements", t.NumElements())
				entries = append(entries, blockquant.Entry{
					Name:  t.Name,
					Shape: t.Shape,
					DType: blockquant.DTypeF32,
					Data:  blockquant.EncodeF32(t.Data),
				})
			}

			w := store.NewDirWriter(outPath, store.Meta{})
			if err := w.WriteModel(entries); err != nil {
				return err
			}

			log.Info("dequantised model", "in", inPath, "out", outPath, "tensors", len(entries))
			return nil
		},
	}
}
