package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
)

func encodeExport(w io.Writer, snap *institute.Snapshot, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(snap), "encoding json")
	}
	return errors.Errorf("unknown export format %q (yaml or json)", format)
}

func (cli *commandLine) exportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export users, courses and offerings, without passwords (administrators)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cli.asAdmin(); err != nil {
				return err
			}
			snap := cli.inst.Snapshot().Redacted()
			if output == "" || output == "-" {
				return encodeExport(cli.out, snap, format)
			}

			f, err := os.Create(output)
			if err != nil {
				return errors.Wrapf(err, "creating %s", output)
			}
			if err := encodeExport(f, snap, format); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return errors.Wrapf(err, "closing %s", output)
			}
			cli.printf("Exported to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "yaml or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (stdout by default)")
	return cmd
}
