// Package cmd provides CLI commands for the strata binary.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/strata/cli/config"
	"github.com/justapithecus/strata/iox"
	"github.com/justapithecus/strata/stream"
	"github.com/justapithecus/strata/types"
)

// appendBufSize is the read granularity when piping raw sample data into
// a stream. Appends of any size are legal; this just bounds copies.
const appendBufSize = 1 << 20

// StreamCommand returns the stream command: ingest raw sample bytes from
// a file or stdin into a chunked array store.
func StreamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Ingest raw sample bytes into a chunked array store",
		ArgsUsage: "[input file, or - for stdin]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML settings file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "store-path",
				Usage: "Override the store path from the settings file",
			},
			&cli.StringFlag{
				Name:  "metadata",
				Usage: "Path to a JSON document to store as acquire.json",
			},
		},
		Action: streamAction,
	}
}

func streamAction(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	input, closeInput, err := openInput(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeInput()

	s, err := stream.New(c.Context, settings)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open stream: %v", err), 1)
	}

	if path := c.String("metadata"); path != "" {
		doc, err := os.ReadFile(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot read metadata file: %v", err), 1)
		}
		if code := s.WriteCustomMetadata(string(doc), false); code != types.StatusSuccess {
			return cli.Exit(fmt.Sprintf("cannot write custom metadata: %s", code), 1)
		}
	}

	if err := pump(input, s); err != nil {
		iox.DiscardErr(s.Finalize)
		return cli.Exit(err.Error(), 1)
	}

	if err := s.Finalize(); err != nil {
		return cli.Exit(fmt.Sprintf("finalize failed: %v", err), 1)
	}

	out, _ := json.MarshalIndent(s.Metrics(), "", "  ")
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

// pump copies input into the stream until EOF or a latched error.
func pump(r io.Reader, s *stream.Stream) error {
	buf := make([]byte, appendBufSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			consumed, err := s.Append(buf[:n])
			if err != nil {
				return fmt.Errorf("append failed: %w", err)
			}
			if consumed < n {
				return fmt.Errorf("append consumed %d of %d bytes: %s", consumed, n, s.LastError())
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading input: %w", readErr)
		}
	}
}

// loadSettings reads the config file and applies flag overrides.
func loadSettings(c *cli.Context) (types.Settings, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return types.Settings{}, err
	}
	settings, err := cfg.ToSettings()
	if err != nil {
		return types.Settings{}, err
	}
	if path := c.String("store-path"); path != "" {
		settings.StorePath = path
	}
	return settings, nil
}

// openInput opens the named file, or stdin for "" or "-".
func openInput(name string) (io.Reader, func(), error) {
	if name == "" || name == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open input: %w", err)
	}
	return f, iox.CloseFunc(f), nil
}
