package main

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenjy16/webtools-sub001/internal/config"
	"github.com/chenjy16/webtools-sub001/internal/tool"
)

func TestBackupRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "snap.db")
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(dbPath, []byte("sqlite bytes"), 0o600))
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"general":{}}`), 0o600))

	archive := filepath.Join(dir, "backup.tar.gz")
	m, err := writeArchive(archive, map[string]string{databaseName: dbPath, configName: cfgPath})
	require.NoError(t, err)
	require.Len(t, m.Files, 2)
	assert.Equal(t, databaseName, m.Files[0].Name)
	assert.Equal(t, int64(len("sqlite bytes")), m.Files[0].Size)

	_, err = writeArchive(archive, map[string]string{databaseName: dbPath})
	assert.Error(t, err, "existing archive is not overwritten")

	listed, err := readManifest(archive)
	require.NoError(t, err)
	assert.Equal(t, m.Files, listed.Files)

	restoreDir := filepath.Join(dir, "restored")
	newDB := filepath.Join(restoreDir, "data", "other.db")
	newCfg := filepath.Join(restoreDir, "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(newDB), 0o755))
	require.NoError(t, os.WriteFile(newDB+"-wal", []byte("stale"), 0o600))

	restored, err := restoreArchive(archive, newDB, newCfg)
	require.NoError(t, err)
	assert.Equal(t, []string{newDB, newCfg}, restored)

	got, err := os.ReadFile(newDB)
	require.NoError(t, err)
	assert.Equal(t, "sqlite bytes", string(got))
	got, err = os.ReadFile(newCfg)
	require.NoError(t, err)
	assert.Equal(t, `{"general":{}}`, string(got))
	assert.NoFileExists(t, newDB+"-wal")

	leftovers, err := filepath.Glob(filepath.Join(restoreDir, "data", ".*restore-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRestoreArchive_RejectsTampering(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "db")
	require.NoError(t, os.WriteFile(src, []byte("original"), 0o600))
	archive := filepath.Join(dir, "b.tar.gz")
	m, err := writeArchive(archive, map[string]string{databaseName: src})
	require.NoError(t, err)

	// Rebuild the archive with different contents under the old manifest.
	require.NoError(t, os.WriteFile(src, []byte("tampered"), 0o600))
	forged := filepath.Join(dir, "forged.tar.gz")
	f, err := os.Create(forged)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	header, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: manifestName, Mode: 0o600, Size: int64(len(header))}))
	_, err = tw.Write(header)
	require.NoError(t, err)
	require.NoError(t, appendFile(tw, m.Files[0], src, m.CreatedAt))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	target := filepath.Join(dir, "out", "toolblog.db")
	_, err = restoreArchive(forged, target, filepath.Join(dir, "out", "config.json"))
	assert.ErrorContains(t, err, "checksum mismatch")
	assert.NoFileExists(t, target)
}

func TestRestoreArchive_RejectsNonGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))
	_, err := restoreArchive(path, "x.db", "config.json")
	assert.ErrorContains(t, err, "not a gzip archive")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 KB", humanSize(1536))
	assert.Equal(t, "2.0 MB", humanSize(2<<20))
	assert.Equal(t, "1.0 GB", humanSize(1<<30))
}

func TestBuildServiceFile(t *testing.T) {
	sf, err := buildServiceFile("linux", "/home/ada", "/usr/local/bin/toolblog", "/home/ada/.toolblog/config.json")
	require.NoError(t, err)
	assert.Equal(t, "/home/ada/.config/systemd/user/toolblog.service", sf.Path)
	assert.Contains(t, sf.Content, "ExecStart=/usr/local/bin/toolblog serve --config /home/ada/.toolblog/config.json")
	assert.Contains(t, sf.Hints[0], "systemctl --user start toolblog")

	sf, err = buildServiceFile("darwin", "/Users/ada", "/opt/toolblog", "/Users/ada/.toolblog/config.json")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sf.Path, "Library/LaunchAgents/blog.tool.serve.plist"))
	assert.Contains(t, sf.Content, "<string>serve</string>")
	assert.Contains(t, sf.Content, "/Users/ada/.toolblog/logs/toolblog.log")
	assert.NotContains(t, sf.Content, "{{")

	_, err = buildServiceFile("windows", `C:\Users\ada`, "toolblog.exe", "config.json")
	assert.Error(t, err)
}

func TestParamNames(t *testing.T) {
	schema := tool.ToolParameters(map[string]tool.Param{
		"text":   {Type: "string"},
		"action": {Type: "string"},
		"binary": {Type: "boolean"},
	}, []string{"action"})
	assert.Equal(t, "action* binary text", paramNames(schema))
}

func TestRegisterTools_AllConfiguredTools(t *testing.T) {
	logger = discardLogger()
	cfg := config.Defaults()
	reg, err := registerTools(cfg, newGameManager(cfg), nil)
	require.NoError(t, err)
	for _, name := range []string{
		"base64", "url", "json", "color", "hash", "hmac", "qrcode", "cron",
		"beautify", "minify", "streams", "game_2048", "game_snake", "game_jump",
	} {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, name)
	}

	reg, err = registerTools(cfg, nil, nil)
	require.NoError(t, err)
	_, ok := reg.Lookup("game_snake")
	assert.False(t, ok)
}

func TestRegisterTools_BadTimezone(t *testing.T) {
	logger = discardLogger()
	cfg := config.Defaults()
	cfg.Tools.Cron.Timezone = "Mars/Olympus_Mons"
	_, err := registerTools(cfg, nil, nil)
	assert.Error(t, err)
}

func TestRunWizard(t *testing.T) {
	cfg := config.Defaults()
	answers := strings.Join([]string{
		"/srv/toolblog", // data dir
		"2",             // openai
		"${OPENAI_API_KEY}",
		"y", // browser
		"n", // web
		"y", // telegram
		"123:abc",
	}, "\n") + "\n"

	var out strings.Builder
	require.NoError(t, runWizard(strings.NewReader(answers), &out, cfg))

	assert.Equal(t, "/srv/toolblog", cfg.General.DataDir)
	assert.Equal(t, "/srv/toolblog/toolblog.db", cfg.Store.DBPath)
	assert.Equal(t, "openai", cfg.General.DefaultProvider)
	require.Contains(t, cfg.Providers, "openai")
	assert.Equal(t, "${OPENAI_API_KEY}", cfg.Providers["openai"].APIKey)
	assert.Len(t, cfg.Providers, 1)
	assert.Equal(t, "browser", cfg.Analysis.FetchMode)
	assert.False(t, cfg.Channels.Web.Enabled)
	assert.True(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, "123:abc", cfg.Channels.Telegram.Token)
	assert.NoError(t, config.Validate(cfg))
}

func TestRunWizard_DefaultsOnEmptyInput(t *testing.T) {
	cfg := config.Defaults()
	var out strings.Builder
	require.NoError(t, runWizard(strings.NewReader(""), &out, cfg))
	assert.Equal(t, "ollama", cfg.General.DefaultProvider)
	assert.Equal(t, "http", cfg.Analysis.FetchMode)
	assert.True(t, cfg.Channels.Web.Enabled)
	assert.NoError(t, config.Validate(cfg))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
