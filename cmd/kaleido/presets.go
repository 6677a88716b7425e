package main

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/kaleido-go/engine/config"
	"github.com/Carmen-Shannon/kaleido-go/engine/params"
	"github.com/spf13/cobra"
)

func newPresetsCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage saved presets",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List built-in and user presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			lib, err := loadLibrary(cfg.Presets.File)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range lib.Names() {
				kind := "user"
				if lib.IsBuiltin(name) {
					kind = "builtin"
				}
				mark := " "
				if name == lib.Startup() {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-16s %s\n", mark, name, kind)
			}
			return nil
		},
	}

	exp := &cobra.Command{
		Use:   "export <file.yaml>",
		Short: "Write the user presets to a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc, err := params.LoadPresetFile(cfg.Presets.File)
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[0], err)
			}
			if err := params.ExportYAML(f, doc); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d presets to %s\n", len(doc.Presets), args[0])
			return nil
		},
	}

	imp := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Merge presets from a YAML document into the preset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()
			incoming, err := params.ImportYAML(f)
			if err != nil {
				return err
			}
			lib, err := loadLibrary(cfg.Presets.File)
			if err != nil {
				return err
			}
			n := lib.Merge(incoming)
			if err := params.SavePresetFile(cfg.Presets.File, lib.Document()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d presets into %s\n", n, cfg.Presets.File)
			return nil
		},
	}

	startup := &cobra.Command{
		Use:   "startup <name>",
		Short: "Set the preset applied when run starts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			lib, err := loadLibrary(cfg.Presets.File)
			if err != nil {
				return err
			}
			if err := lib.SetStartup(args[0]); err != nil {
				return err
			}
			return params.SavePresetFile(cfg.Presets.File, lib.Document())
		},
	}

	cmd.AddCommand(list, exp, imp, startup)
	return cmd
}

// loadLibrary reads the preset file into a library that does not persist on its own.
func loadLibrary(path string) (params.PresetLibrary, error) {
	doc, err := params.LoadPresetFile(path)
	if err != nil {
		return nil, err
	}
	return params.NewPresetLibrary(params.WithDocument(doc)), nil
}
