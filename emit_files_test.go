package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() PackageRecord {
	return PackageRecord{
		Name:        "zlib",
		Version:     "1.2.11",
		URL:         "http://example.org/zlib-1.2.11.tar.gz",
		Patch:       "zlib-fix.patch@@",
		PreInstall:  "SKIP",
		Configure:   "DEFAULT",
		Build:       "DEFAULT",
		PostBuild:   "SKIP",
		Test:        "SKIP",
		Install:     "-j4",
		PostInstall: "ldconfig@@rm -f /usr/lib/libz.a@@",
		Uninstall:   "rm -rf /usr/lib/libz.so@@",
	}
}

func TestRenderDefinition(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderDefinition(&buf, normalizeRecord(sampleRecord())))

	want := `name: "zlib"
version: "1.2.11"
url: "http://example.org/zlib-1.2.11.tar.gz"
patch:
  - "patch -Np1 -i /usr/src/zlib-fix.patch"
preinstall: SKIP
configure: "./configure --prefix=/usr"
build: "make"
postbuild: SKIP
test: SKIP
posttest: SKIP
install: "make -j4 install"
postinstall:
  - "ldconfig"
  - "rm -f /usr/lib/libz.a"
uninstall: SKIP
deps: SKIP
`
	assert.Equal(t, want, buf.String())
}

func TestRenderDefinitionEscapesQuotes(t *testing.T) {
	rec := sampleRecord()
	rec.Configure = `--with-msg="hi \o/"`

	var buf bytes.Buffer
	require.NoError(t, renderDefinition(&buf, normalizeRecord(rec)))
	assert.Contains(t, buf.String(), `configure: "./configure --prefix=/usr --with-msg=\"hi \\o/\""`)

	def, err := parseDefinition(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, `./configure --prefix=/usr --with-msg="hi \o/"`, def.Stage(StageConfigure).Command)
	assert.Equal(t, `--with-msg="hi \o/"`, def.Stage(StageConfigure).Args)
}

func TestFileEmitterRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pkg_def")
	ctx := context.Background()

	em := newFileEmitter(dir)
	require.NoError(t, em.Begin(ctx))
	require.NoError(t, em.Emit(ctx, sampleRecord()))
	require.NoError(t, em.Commit(ctx))
	require.NoError(t, em.Close())

	def, err := readDefinitionFile(filepath.Join(dir, "zlib.yaml"))
	require.NoError(t, err)

	assert.Equal(t, normalizeRecord(sampleRecord()), def)
	assert.Equal(t, "make", def.Stage(StageBuild).Command)
	assert.Equal(t, "make -j4 install", def.Stage(StageInstall).Command)
}

func TestFileEmitterLaterVersionOverwrites(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	older := sampleRecord()
	newer := sampleRecord()
	newer.Version = "1.3.1"

	em := newFileEmitter(dir)
	require.NoError(t, em.Begin(ctx))
	require.NoError(t, em.Emit(ctx, older))
	require.NoError(t, em.Emit(ctx, newer))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")

	def, err := readDefinitionFile(filepath.Join(dir, "zlib.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "1.3.1", def.Version)
}

func TestDefinitionPathRejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../etc/passwd"} {
		_, err := definitionPath("out", name)
		assert.Error(t, err, "name %q", name)
	}

	p, err := definitionPath("out", "gcc-pass1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "gcc-pass1.yaml"), p)
}

func TestFileEmitterUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	em := newFileEmitter(filepath.Join(blocker, "pkg_def"))
	assert.Error(t, em.Begin(context.Background()))
}

func TestVerifyDefinitions(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	em := newFileEmitter(dir)
	require.NoError(t, em.Begin(ctx))
	for _, name := range []string{"zlib", "bzip2", "xz"} {
		rec := sampleRecord()
		rec.Name = name
		require.NoError(t, em.Emit(ctx, rec))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a definition"), 0o644))

	n, err := verifyDefinitions(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// A missing key and a renamed file are both reported.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: \"broken\"\n"), 0o644))
	data, err := os.ReadFile(filepath.Join(dir, "xz.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lzma.yaml"), data, 0o644))

	n, err = verifyDefinitions(dir)
	assert.Equal(t, 3, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml: definition missing keys: version, url")
	assert.Contains(t, err.Error(), `lzma.yaml: package name "xz" does not match file name`)
}

func TestParseDefinitionRejectsBadStages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderDefinition(&buf, normalizeRecord(sampleRecord())))
	base := buf.String()

	tests := []struct {
		name    string
		replace [2]string
		wantErr string
	}{
		{"empty step list", [2]string{"preinstall: SKIP", "preinstall: []"}, "preinstall: empty step list"},
		{"mapping stage", [2]string{"build: \"make\"", "build: {cmd: make}"}, "build: expected SKIP or a command, got mapping"},
		{"list command stage", [2]string{"build: \"make\"", "build: [make]"}, "build: expected SKIP or a command, got list"},
		{"scalar patch", [2]string{"patch:\n  - \"patch -Np1 -i /usr/src/zlib-fix.patch\"", "patch: \"foo\""}, "patch: expected SKIP or a step list, got string"},
		{"scalar preinstall", [2]string{"preinstall: SKIP", "preinstall: \"mkdir build\""}, "preinstall: expected SKIP or a step list, got string"},
		{"scalar postbuild", [2]string{"postbuild: SKIP", "postbuild: \"strip foo\""}, "postbuild: expected SKIP or a step list, got string"},
		{"scalar postinstall", [2]string{"postinstall:\n  - \"ldconfig\"\n  - \"rm -f /usr/lib/libz.a\"", "postinstall: \"ldconfig\""}, "postinstall: expected SKIP or a step list, got string"},
		{"posttest command", [2]string{"posttest: SKIP", "posttest: \"make check\""}, "posttest: expected SKIP, got string"},
		{"uninstall steps", [2]string{"uninstall: SKIP", "uninstall: [\"rm -f x\"]"}, "uninstall: expected SKIP, got list"},
		{"list url", [2]string{"url: \"http://example.org/zlib-1.2.11.tar.gz\"", "url: [a]"}, "url: expected a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := bytes.Replace([]byte(base), []byte(tt.replace[0]), []byte(tt.replace[1]), 1)
			_, err := parseDefinition(doc)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWriteDefinitionFileRejectsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*PackageRecord)
		want string
	}{
		{"url", func(r *PackageRecord) { r.URL = "http://example.org/\xff.tgz" }, "url is not valid UTF-8"},
		{"configure", func(r *PackageRecord) { r.Configure = "--with-x=\xc3" }, "configure is not valid UTF-8"},
		{"postinstall step", func(r *PackageRecord) { r.PostInstall = "ldconfig@@echo \xfe@@" }, "postinstall is not valid UTF-8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			rec := sampleRecord()
			tt.mod(&rec)

			err := writeDefinitionFile(dir, normalizeRecord(rec))
			assert.ErrorContains(t, err, tt.want)

			entries, rerr := os.ReadDir(dir)
			require.NoError(t, rerr)
			assert.Empty(t, entries)
		})
	}
}

func TestWriteDefinitionFileKeepsMultibyteText(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecord()
	rec.PostInstall = "echo 'grüße ✓'@@"
	require.NoError(t, writeDefinitionFile(dir, normalizeRecord(rec)))

	def, err := readDefinitionFile(filepath.Join(dir, "zlib.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"echo 'grüße ✓'"}, def.Stage(StagePostInstall).Steps)
}

func TestConfigureOverrideRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecord()
	rec.Configure = "--disable-static"
	require.NoError(t, writeDefinitionFile(dir, normalizeRecord(rec)))

	data, err := os.ReadFile(filepath.Join(dir, "zlib.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "configure: \"./configure --prefix=/usr --disable-static\"\n")

	def, err := parseDefinition(data)
	require.NoError(t, err)
	assert.Equal(t, StageValue{
		Kind:    StageArgs,
		Command: "./configure --prefix=/usr --disable-static",
		Args:    "--disable-static",
	}, def.Stage(StageConfigure))
}
