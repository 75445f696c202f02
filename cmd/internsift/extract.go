package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/FranksOps/internsift/internal/extract"
	"github.com/spf13/cobra"
)

func newExtractCmd(c *cli) *cobra.Command {
	var skillsFile string

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract title, responsibilities and skills from a job description",
		Long:  "Reads a job description from file, or from stdin when no file is given, and prints the extracted fields as JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				text []byte
				err  error
			)
			if len(args) == 1 {
				text, err = os.ReadFile(args[0])
			} else {
				text, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read description: %w", err)
			}

			if skillsFile == "" {
				skillsFile = c.cfg.Extract.SkillsFile
			}
			loader := extract.Builtin()
			if skillsFile != "" {
				loader = extract.FileLoader(skillsFile)
			}
			ex := extract.New(loader, c.logger)
			if err := ex.Load(); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ex.Extract(string(text)))
		},
	}
	cmd.Flags().StringVar(&skillsFile, "skills", "", "YAML skill vocabulary (default from extract.skills_file)")
	return cmd
}
