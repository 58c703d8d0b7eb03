package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

// definitionExt is appended to the package name to form the file name.
const definitionExt = ".yaml"

// skipLiteral is how a skipped stage is rendered.
const skipLiteral = sentinelSkip

// fileEmitter writes one definition file per package. There is no
// transaction across files: a failed run keeps the files already written.
type fileEmitter struct {
	dir string
}

func newFileEmitter(dir string) *fileEmitter {
	return &fileEmitter{dir: dir}
}

func (e *fileEmitter) Name() string { return "files" }

func (e *fileEmitter) Begin(context.Context) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

func (e *fileEmitter) Emit(_ context.Context, rec PackageRecord) error {
	return writeDefinitionFile(e.dir, normalizeRecord(rec))
}

func (e *fileEmitter) Commit(context.Context) error { return nil }
func (e *fileEmitter) Close() error                 { return nil }

// definitionPath returns the file for a package. The version is not part of
// the name, so a later edition of the same package replaces an earlier one.
func definitionPath(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("package name %q cannot be used as a file name", name)
	}
	return filepath.Join(dir, name+definitionExt), nil
}

func writeDefinitionFile(dir string, def NormalizedDefinition) error {
	path, err := definitionPath(dir, def.Name)
	if err != nil {
		return err
	}
	if err := checkUTF8(def); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := renderDefinition(&buf, def); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

// renderDefinition writes def in the fixed definition line order.
func renderDefinition(w io.Writer, def NormalizedDefinition) error {
	for _, kv := range [][2]string{{"name", def.Name}, {"version", def.Version}, {"url", def.URL}} {
		if _, err := fmt.Fprintf(w, "%s: %s\n", kv[0], quote(kv[1])); err != nil {
			return err
		}
	}
	for _, s := range lifecycleStages {
		if err := renderStage(w, string(s), def.Stage(s)); err != nil {
			return err
		}
	}
	if err := renderStage(w, "uninstall", def.Uninstall); err != nil {
		return err
	}
	return renderStage(w, "deps", def.Deps)
}

func renderStage(w io.Writer, key string, v StageValue) error {
	switch v.Kind {
	case StageDefault, StageArgs:
		_, err := fmt.Fprintf(w, "%s: %s\n", key, quote(v.Command))
		return err
	case StageSteps:
		if _, err := fmt.Fprintf(w, "%s:\n", key); err != nil {
			return err
		}
		for _, step := range v.Steps {
			if _, err := fmt.Fprintf(w, "  - %s\n", quote(step)); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintf(w, "%s: %s\n", key, skipLiteral)
		return err
	}
}

// checkUTF8 rejects definitions with invalid UTF-8. quote would write such
// bytes as \xNN, which YAML reads back as the code point U+00NN.
func checkUTF8(def NormalizedDefinition) error {
	bad := func(field string) error {
		return fmt.Errorf("package %q: %s is not valid UTF-8", def.Name, field)
	}
	for field, s := range map[string]string{"name": def.Name, "version": def.Version, "url": def.URL} {
		if !utf8.ValidString(s) {
			return bad(field)
		}
	}
	for _, st := range lifecycleStages {
		v := def.Stage(st)
		if !utf8.ValidString(v.Command) {
			return bad(string(st))
		}
		for _, step := range v.Steps {
			if !utf8.ValidString(step) {
				return bad(string(st))
			}
		}
	}
	return nil
}

// quote renders s as a double-quoted scalar. Go's escaping is a subset of
// YAML's double-quoted escapes for valid UTF-8, so the result stays parseable.
func quote(s string) string {
	return strconv.Quote(s)
}

// writeFileAtomic writes data to path using the temp-file, fsync, rename
// pattern so a definition is never left half-written.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".def-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
