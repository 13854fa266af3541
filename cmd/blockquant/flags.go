package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blockquant/internal/logger"
)

var (
	blockSize int64
	bits      int64
	logLevel  string
	logFormat string
	debug     bool
)

func quantFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "bits",
			Aliases:     []string{"b"},
			Usage:       "code width in bits (4 or 8)",
			Value:       4,
			Destination: &bits,
		},
		&cli.Int64Flag{
			Name:        "block-size",
			Aliases:     []string{"bs"},
			Usage:       "weights per scale block",
			Value:       128,
			Destination: &blockSize,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func buildLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.Default()
	default:
		return logger.Pretty(os.Stderr, level)
	}
}
