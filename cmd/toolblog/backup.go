package main

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chenjy16/webtools-sub001/internal/config"
)

// Archive member names. The manifest is always written first.
const (
	manifestName = "manifest.json"
	databaseName = "toolblog.db"
	configName   = "config.json"

	manifestFormat = 1
)

type manifest struct {
	Format    int             `json:"format"`
	CreatedAt time.Time       `json:"created_at"`
	Files     []manifestEntry `json:"files"`
}

type manifestEntry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

func (m manifest) lookup(name string) (manifestEntry, bool) {
	for _, f := range m.Files {
		if f.Name == name {
			return f, true
		}
	}
	return manifestEntry{}, false
}

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the database (scores, conversations) and config",
		Long: `Writes a .tar.gz holding a consistent snapshot of the SQLite database,
the config file and a manifest of SHA-256 checksums that restore verifies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			if outputPath == "" {
				dir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create backup directory: %w", err)
				}
				outputPath = filepath.Join(dir, "toolblog-backup-"+time.Now().Format("20060102-150405")+".tar.gz")
			}

			staging, err := os.MkdirTemp("", "toolblog-backup-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(staging)

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			snap := filepath.Join(staging, databaseName)
			err = st.Snapshot(cmd.Context(), snap)
			st.Close()
			if err != nil {
				return err
			}

			sources := map[string]string{databaseName: snap}
			if _, err := os.Stat(cfgPath); err == nil {
				sources[configName] = cfgPath
			}
			m, err := writeArchive(outputPath, sources)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup created: %s\n", outputPath)
			return printManifest(out, m)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ~/.toolblog/backups/toolblog-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var (
		force bool
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "restore <file.tar.gz>",
		Short: "Restore the database and config from a backup archive",
		Long: `Verifies every file in a 'toolblog backup' archive against its manifest,
then replaces the database and config. Stop 'toolblog serve' first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive := args[0]
			out := cmd.OutOrStdout()
			if list {
				m, err := readManifest(archive)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Created: %s\n", m.CreatedAt.Local().Format(time.DateTime))
				return printManifest(out, m)
			}

			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			dbPath := dbPathFor(cfg)
			if !force && (exists(dbPath) || exists(cfgPath)) {
				fmt.Fprintf(out, "This will overwrite existing data.\n  Database: %s\n  Config:   %s\n", dbPath, cfgPath)
				return errors.New("restore aborted (use --force to proceed)")
			}

			restored, err := restoreArchive(archive, dbPath, cfgPath)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			fmt.Fprintf(out, "Restored from %s\n", archive)
			for _, p := range restored {
				fmt.Fprintf(out, "  - %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data without asking")
	cmd.Flags().BoolVar(&list, "list", false, "print the archive manifest and exit")
	return cmd
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func printManifest(w io.Writer, m manifest) error {
	rows := make([][]string, 0, len(m.Files))
	for _, f := range m.Files {
		rows = append(rows, []string{f.Name, humanSize(f.Size), f.SHA256[:min(12, len(f.SHA256))]})
	}
	return printTable(w, []string{"File", "Size", "SHA-256"}, rows)
}

// writeArchive packs sources (archive name to file path) into dest behind a
// manifest of their checksums.
func writeArchive(dest string, sources map[string]string) (manifest, error) {
	m := manifest{Format: manifestFormat, CreatedAt: time.Now().UTC()}
	for _, name := range []string{databaseName, configName} {
		path, ok := sources[name]
		if !ok {
			continue
		}
		e, err := checksum(path)
		if err != nil {
			return m, err
		}
		e.Name = name
		m.Files = append(m.Files, e)
	}
	if len(m.Files) == 0 {
		return m, errors.New("nothing to archive")
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return m, err
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = func() error {
		header, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return err
		}
		if err := tw.WriteHeader(&tar.Header{
			Name: manifestName, Mode: 0o600, Size: int64(len(header)), ModTime: m.CreatedAt,
		}); err != nil {
			return err
		}
		if _, err := tw.Write(header); err != nil {
			return err
		}
		for _, e := range m.Files {
			if err := appendFile(tw, e, sources[e.Name], m.CreatedAt); err != nil {
				return fmt.Errorf("add %s: %w", e.Name, err)
			}
		}
		if err := tw.Close(); err != nil {
			return err
		}
		return gz.Close()
	}()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return m, err
	}
	return m, nil
}

func appendFile(tw *tar.Writer, e manifestEntry, path string, mod time.Time) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := tw.WriteHeader(&tar.Header{Name: e.Name, Mode: 0o600, Size: e.Size, ModTime: mod}); err != nil {
		return err
	}
	_, err = io.CopyN(tw, src, e.Size)
	return err
}

func checksum(path string) (manifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return manifestEntry{}, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return manifestEntry{}, err
	}
	return manifestEntry{Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

// openArchive returns a tar reader positioned after the manifest.
func openArchive(path string) (*tar.Reader, manifest, func() error, error) {
	var m manifest
	f, err := os.Open(path)
	if err != nil {
		return nil, m, nil, err
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, m, nil, fmt.Errorf("not a gzip archive: %w", err)
	}
	closeAll := func() error {
		gz.Close()
		return f.Close()
	}
	tr := tar.NewReader(gz)
	h, err := tr.Next()
	if err == nil && h.Name != manifestName {
		err = fmt.Errorf("first entry is %q, want %s", h.Name, manifestName)
	}
	if err == nil {
		err = json.NewDecoder(io.LimitReader(tr, 1<<20)).Decode(&m)
	}
	if err == nil && m.Format != manifestFormat {
		err = fmt.Errorf("unsupported manifest format %d", m.Format)
	}
	if err != nil {
		closeAll()
		return nil, m, nil, fmt.Errorf("read manifest: %w", err)
	}
	return tr, m, closeAll, nil
}

func readManifest(path string) (manifest, error) {
	_, m, closeAll, err := openArchive(path)
	if err != nil {
		return m, err
	}
	return m, closeAll()
}

// restoreArchive verifies each member against the manifest while staging it
// next to its target, and only then moves the files into place. Stale WAL
// and SHM files of the old database are removed.
func restoreArchive(archive, dbPath, cfgPath string) ([]string, error) {
	tr, m, closeAll, err := openArchive(archive)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	targets := map[string]string{databaseName: dbPath, configName: cfgPath}
	staged := make(map[string]string)
	defer func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}()

	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		target, known := targets[h.Name]
		want, listed := m.lookup(h.Name)
		if !known || !listed {
			return nil, fmt.Errorf("unexpected archive member %q", h.Name)
		}
		tmp, err := stage(tr, target, want)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", h.Name, err)
		}
		staged[h.Name] = tmp
	}
	for _, f := range m.Files {
		if _, ok := staged[f.Name]; !ok {
			return nil, fmt.Errorf("%s listed in manifest but missing", f.Name)
		}
	}

	var restored []string
	for _, name := range []string{databaseName, configName} {
		tmp, ok := staged[name]
		if !ok {
			continue
		}
		target := targets[name]
		if name == databaseName {
			for _, side := range []string{target + "-wal", target + "-shm"} {
				if err := os.Remove(side); err != nil && !errors.Is(err, os.ErrNotExist) {
					return restored, err
				}
			}
		}
		if err := os.Rename(tmp, target); err != nil {
			return restored, err
		}
		delete(staged, name)
		restored = append(restored, target)
	}
	return restored, nil
}

// stage copies r into a temp file beside target and checks it against want.
func stage(r io.Reader, target string, want manifestEntry) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".restore-*")
	if err != nil {
		return "", err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && (n != want.Size || hex.EncodeToString(h.Sum(nil)) != want.SHA256) {
		err = errors.New("checksum mismatch")
	}
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), os.Chmod(f.Name(), 0o600)
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 2; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMG"[exp])
}
