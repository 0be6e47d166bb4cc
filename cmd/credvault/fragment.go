package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/credvault/internal/history"
	"github.com/forest6511/credvault/internal/ui"
	"github.com/forest6511/credvault/pkg/backup"
	"github.com/forest6511/credvault/pkg/batch"
	"github.com/forest6511/credvault/pkg/envelope"
)

var (
	fragmentDir         string
	fragmentManifestDir string
	fragmentLocal       bool

	joinOutput   string
	joinManifest string
)

func init() {
	rootCmd.AddCommand(fragmentCmd)
	fragmentCmd.AddCommand(fragmentCreateCmd)
	fragmentCmd.AddCommand(fragmentJoinCmd)

	fragmentCreateCmd.Flags().StringVar(&fragmentDir, "fragments-dir", "", "Directory for the fragments (overrides config)")
	fragmentCreateCmd.Flags().StringVar(&fragmentManifestDir, "manifest-dir", "", "Directory for the recovery manifest (overrides config)")
	fragmentCreateCmd.Flags().BoolVar(&fragmentLocal, "local", false, "Write fragments to a directory even when S3 is configured")

	fragmentJoinCmd.Flags().StringVarP(&joinOutput, "output", "o", "", "Path of the reassembled envelope")
	fragmentJoinCmd.Flags().StringVar(&joinManifest, "manifest", "", "Recovery manifest used to verify fragment lengths")
	_ = fragmentJoinCmd.MarkFlagRequired("output")
}

var fragmentCmd = &cobra.Command{
	Use:   "fragment",
	Short: "Create or reassemble fragmented backups",
	Long: `Fragmented backups encrypt a credential file under a fresh random
password, split the base64 envelope into three parts and write a recovery
manifest holding the password. Keep the manifest and each part on
different media.`,
}

var fragmentCreateCmd = &cobra.Command{
	Use:   "create <credential-file>",
	Short: "Create a fragmented backup of a credential file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fragments, err := fragmentStore(ctx)
		if err != nil {
			return err
		}
		manifestDir := cfg.Fragments.ManifestDir
		if fragmentManifestDir != "" {
			manifestDir = fragmentManifestDir
		}

		sp := ui.StartSpinner(cmd.ErrOrStderr(), "Creating fragmented backup...")
		result, err := backup.Backup(ctx, v, args[0], backup.BackupOptions{
			Fragments: fragments,
			Manifests: backup.NewDirStore(manifestDir),
		})
		sp.Stop("")

		e := &history.Event{
			Operation: history.OpFragmentCreate,
			Input:     args[0],
			Success:   err == nil,
			Reason:    batch.ReasonOf(err),
		}
		if err == nil {
			e.Output = result.ManifestLocation
		}
		recordHistory(ctx, e)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		logger.Debug().Str("backup_id", result.Manifest.BackupID).Int("length", result.Manifest.TotalLength).Msg("backup created")

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.OK("Fragmented backup created"))
		for _, f := range result.Fragments {
			fmt.Fprintf(out, "  part %d/%d  %s %s\n", f.Index, backup.Parts, ui.Path.Sprint(f.Location),
				ui.Muted.Sprintf("%d bytes", len(f.Data)))
		}
		fmt.Fprintf(out, "  manifest  %s\n", ui.Path.Sprint(result.ManifestLocation))
		fmt.Fprintln(out, ui.Warn("The manifest contains the backup password. Store it apart from the fragments."))
		return nil
	},
}

var fragmentJoinCmd = &cobra.Command{
	Use:   "join <part1> <part2> <part3>",
	Short: "Reassemble fragments into an envelope file",
	Long: `Concatenate three fragments in order, base64-decode them and write the
resulting envelope. Parts may be local paths or s3://bucket/key URIs.
Decrypt the envelope afterwards with the password from the manifest:

  credvault fragment join a.part1of3 b.part2of3 c.part3of3 -o envelope.json --manifest m.txt
  credvault decrypt envelope.json serviceAccountKey.json`,
	Args: cobra.ExactArgs(backup.Parts),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := joinFragments(ctx, [backup.Parts]string{args[0], args[1], args[2]}, joinManifest)
		recordHistory(ctx, &history.Event{
			Operation: history.OpFragmentJoin,
			Input:     strings.Join(args, ","),
			Output:    joinOutput,
			Success:   err == nil,
			Reason:    batch.ReasonOf(err),
		})
		if err != nil {
			return err
		}

		data, err := envelope.Marshal(env)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(joinOutput), 0700); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(joinOutput, data, 0600); err != nil {
			return fmt.Errorf("failed to write envelope: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.OK("Envelope written to "+ui.Path.Sprint(joinOutput)))
		return nil
	},
}

// fragmentStore selects S3 when configured, otherwise a directory.
func fragmentStore(ctx context.Context) (backup.Store, error) {
	if fragmentDir != "" || fragmentLocal || cfg.Fragments.S3 == nil {
		dir := cfg.Fragments.Dir
		if fragmentDir != "" {
			dir = fragmentDir
		}
		return backup.NewDirStore(dir), nil
	}
	return backup.NewS3Store(ctx, *cfg.Fragments.S3)
}

func joinFragments(ctx context.Context, locations [backup.Parts]string, manifestPath string) (*envelope.Envelope, error) {
	parts, err := readParts(ctx, locations)
	if err != nil {
		return nil, err
	}

	if manifestPath != "" {
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		m, err := backup.ParseManifest(data)
		if err != nil {
			return nil, err
		}
		if err := m.Check(parts); err != nil {
			return nil, err
		}
	}

	return backup.Join(parts)
}

// fragmentLocation is a fragment location split into its store and the
// object name within it.
type fragmentLocation struct {
	store string // directory path or s3://bucket/prefix
	name  string
	s3    *backup.S3Config
}

// parseLocation splits a local path or s3:// URI.
func parseLocation(loc string) (fragmentLocation, error) {
	rest, ok := strings.CutPrefix(loc, "s3://")
	if !ok {
		return fragmentLocation{store: filepath.Dir(loc), name: filepath.Base(loc)}, nil
	}

	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return fragmentLocation{}, fmt.Errorf("invalid S3 location %q", loc)
	}
	s3cfg := &backup.S3Config{Bucket: bucket, Prefix: path.Dir(key)}
	if s3cfg.Prefix == "." {
		s3cfg.Prefix = ""
	}
	if cfg.Fragments.S3 != nil {
		s3cfg.Region = cfg.Fragments.S3.Region
	}
	return fragmentLocation{
		store: "s3://" + bucket + "/" + s3cfg.Prefix,
		name:  path.Base(key),
		s3:    s3cfg,
	}, nil
}

func (l fragmentLocation) open(ctx context.Context) (backup.Store, error) {
	if l.s3 != nil {
		return backup.NewS3Store(ctx, *l.s3)
	}
	return backup.NewDirStore(l.store), nil
}

// readParts loads the three fragments. Parts kept in one store are read
// with backup.ReadFragments; parts spread across media are read one by one.
func readParts(ctx context.Context, locations [backup.Parts]string) ([backup.Parts]string, error) {
	var (
		parts [backup.Parts]string
		locs  [backup.Parts]fragmentLocation
		names [backup.Parts]string
	)
	shared := true
	for i, loc := range locations {
		l, err := parseLocation(loc)
		if err != nil {
			return parts, fmt.Errorf("part %d: %w", i+1, err)
		}
		locs[i], names[i] = l, l.name
		shared = shared && l.store == locs[0].store
	}

	if shared {
		store, err := locs[0].open(ctx)
		if err != nil {
			return parts, err
		}
		if parts, err = backup.ReadFragments(ctx, store, names); err != nil {
			return parts, err
		}
	} else {
		for i, l := range locs {
			store, err := l.open(ctx)
			if err != nil {
				return parts, fmt.Errorf("part %d: %w", i+1, err)
			}
			data, err := store.Get(ctx, l.name)
			if err != nil {
				return parts, fmt.Errorf("part %d: %w", i+1, err)
			}
			parts[i] = string(data)
		}
	}

	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}
