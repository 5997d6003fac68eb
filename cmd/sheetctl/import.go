package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"sheetport/internal/character/models"
	"sheetport/internal/importer"
)

// Importer is the slice of importer.Service the commands drive.
type Importer interface {
	ImportFromText(ctx context.Context, actor models.Actor, text string, opts importer.Options) (*importer.Result, error)
}

var (
	actorID    string
	actorRole  string
	importJSON bool
	importOpts = importer.DefaultOptions()
)

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Import one or more sheet files",
	Long: `Import each file as a single sheet object or an array of sheets.
Use "-" to read from standard input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, shutdown, err := startApp(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		actor, err := cliActor()
		if err != nil {
			return err
		}
		var failed int
		for _, path := range args {
			if err := importFile(ctx, a.Importer, actor, path, importOpts, cmd.OutOrStdout(), importJSON); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files had failures", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "sheetctl", "Actor id to import as")
	rootCmd.PersistentFlags().StringVar(&actorRole, "role", string(models.RoleGM), "Actor role: gm or player")

	f := importCmd.Flags()
	f.BoolVar(&importJSON, "json", false, "Print the full result as JSON")
	addOptionFlags(f, &importOpts)
}

type flagSet interface {
	StringVar(p *string, name string, value string, usage string)
	BoolVar(p *bool, name string, value bool, usage string)
}

func addOptionFlags(f flagSet, opts *importer.Options) {
	f.StringVar(&opts.Folder, "folder", "", "File every imported character into this folder id")
	f.BoolVar(&opts.Render, "render", opts.Render, "Mark results for opening after import")
	f.BoolVar(&opts.ForceSystem, "force-system", opts.ForceSystem, "Warn and proceed when the world runs another system")
	f.BoolVar(&opts.CoerceType, "coerce-type", opts.CoerceType, "Map unrecognized character types to Player")
	f.BoolVar(&opts.GMFallback, "gm-fallback", opts.GMFallback, "Ask the GM to create characters the actor may not")
	f.BoolVar(&opts.Debug, "debug", opts.Debug, "Log raw and sanitized payloads")
}

func cliActor() (models.Actor, error) {
	role := models.ParseRole(actorRole)
	if role == "" {
		return models.Actor{}, fmt.Errorf("unknown role %q", actorRole)
	}
	return models.Actor{ID: actorID, Role: role}, nil
}

// importFile imports path and reports to out. It returns an error when the
// file cannot be read or parsed, or when any sheet in it failed.
func importFile(ctx context.Context, svc Importer, actor models.Actor, path string, opts importer.Options, out io.Writer, asJSON bool) error {
	text, err := readSource(path)
	if err != nil {
		return err
	}
	result, err := svc.ImportFromText(ctx, actor, string(text), opts)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		for _, n := range result.Notices {
			fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Message)
		}
		for _, c := range result.Characters {
			fmt.Fprintf(out, "%s\t%s\t%s\n", c.ID, c.Type, c.Name)
		}
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d sheet(s) failed", result.Failed)
	}
	return nil
}

func readSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
