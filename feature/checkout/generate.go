package checkout

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// GenerateOptions describes one generator run. Exactly one of OutputZip and
// OutputDir must be set. Seed of -1 lets the generator pick one.
type GenerateOptions struct {
	OutputZip   string
	OutputDir   string
	Seed        int64
	PlayerYAMLs []string
}

// Generate stages the player yaml files into a scratch directory, runs the
// repo's Generate.py against them and delivers the resulting seed either as
// the zip itself or unpacked into a directory.
func (s *Service) Generate(ctx context.Context, opts GenerateOptions) error {
	if opts.OutputZip == "" && opts.OutputDir == "" {
		return errors.New("either an output zip or an output directory is required")
	}
	if opts.OutputZip != "" && opts.OutputDir != "" {
		return errors.New("an output zip and an output directory are mutually exclusive")
	}
	if len(opts.PlayerYAMLs) == 0 {
		return errors.New("at least one player yaml file is required")
	}

	if opts.OutputDir != "" {
		if err := prepareOutputDir(opts.OutputDir); err != nil {
			return err
		}
	}

	tmpDir, err := os.MkdirTemp("", "ap-generate-*")
	if err != nil {
		return fmt.Errorf("cannot create staging directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// Generate.py takes a directory of player yamls, not a list of files.
	// Stage copies under generic names so duplicate basenames cannot clash.
	playersDir := filepath.Join(tmpDir, "Players")
	if err := os.Mkdir(playersDir, 0o755); err != nil {
		return err
	}
	for i, path := range opts.PlayerYAMLs {
		if err := validatePlayerYAML(path); err != nil {
			return err
		}
		staged := filepath.Join(playersDir, fmt.Sprintf("Player%d.yaml", i+1))
		if err := copyFile(path, staged); err != nil {
			return err
		}
	}

	resultDir := filepath.Join(tmpDir, "output")
	args := []string{"--player_files_path", playersDir, "--outputpath", resultDir}
	if opts.Seed != -1 {
		args = append(args, "--seed", strconv.FormatInt(opts.Seed, 10))
	}
	s.logger.Info("Generating seed", zap.Int("players", len(opts.PlayerYAMLs)), zap.Int64("seed", opts.Seed))
	if err := s.apCmd(ctx, "Generate.py", apOptions{args: args}); err != nil {
		return err
	}

	zipPath, err := singleZip(resultDir)
	if err != nil {
		return err
	}

	if opts.OutputDir != "" {
		return extractZip(zipPath, opts.OutputDir)
	}
	return copyFile(zipPath, opts.OutputZip)
}

// prepareOutputDir creates the directory when missing and insists it is
// empty otherwise, so a run can never silently mix into old output.
func prepareOutputDir(dir string) error {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return os.MkdirAll(dir, 0o755)
	case err != nil:
		return err
	case len(entries) > 0:
		return fmt.Errorf("--output-dir is not empty: %s", dir)
	default:
		return nil
	}
}

// validatePlayerYAML rejects paths that are not plain .yaml files and files
// that do not even parse as yaml, before the generator gets to chew on them.
func validatePlayerYAML(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || !strings.HasSuffix(info.Name(), ".yaml") {
		return fmt.Errorf("this doesn't look like a player yaml file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Player files may hold multiple documents (one per world slot).
	dec := yaml.NewDecoder(f)
	for {
		var doc any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("invalid yaml in %s: %w", path, err)
		}
	}
}

// singleZip expects the generator to have produced exactly one zip and
// returns its path.
func singleZip(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("generator produced no output: %w", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".zip") {
		return "", errors.New("expected a single .zip in the output dir")
	}
	return filepath.Join(dir, entries[0].Name()), nil
}

// extractZip unpacks the archive into destDir, refusing entries that would
// land outside it.
func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("cannot open generated zip: %w", err)
	}
	defer r.Close()

	root := filepath.Clean(destDir)
	for _, f := range r.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("zip entry escapes the output directory: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
