package loader

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func writeZipFixture(t *testing.T, dir, name, jsonMemberName, jsonContent string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	member, err := w.Create(jsonMemberName)
	if err != nil {
		t.Fatalf("creating zip member: %v", err)
	}
	if _, err := member.Write([]byte(jsonContent)); err != nil {
		t.Fatalf("writing zip member: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return path
}

const networkFixture = `{"nodes":[{"name":"A","parentNames":[],"possibleValues":["a1"],"conditionalProbabilities":{"a1":1.0}}]}`

func TestLoadFileDecodesPlainJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "network.json")
	if err := os.WriteFile(path, []byte(networkFixture), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	defs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "A" {
		t.Errorf("defs = %+v, want one node named A", defs)
	}
}

func TestLoadFileDecodesZipArchive(t *testing.T) {
	dir := t.TempDir()
	path := writeZipFixture(t, dir, "network.zip", "network.json", networkFixture)

	defs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "A" {
		t.Errorf("defs = %+v, want one node named A", defs)
	}
}

func TestLoadFSDecodesAnEmbeddedNetwork(t *testing.T) {
	fsys := fstest.MapFS{
		"data/network.json": &fstest.MapFile{Data: []byte(networkFixture)},
	}

	defs, err := LoadFS(fsys, "data/network.json")
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "A" {
		t.Errorf("defs = %+v, want one node named A", defs)
	}
}

func TestDecodeZipBytesFailsWithoutAJSONMember(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	member, _ := w.Create("readme.txt")
	member.Write([]byte("not json"))
	w.Close()

	if _, err := decodeZipBytes(buf.Bytes()); err == nil {
		t.Fatalf("expected an error for a zip archive with no .json member")
	}
}

func TestLoadBrowserHelperFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "browser-helper-file.json")
	if err := os.WriteFile(path, []byte(`["chrome/114.0|2","firefox/120.0|2"]`), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	strs, err := LoadBrowserHelperFile(path)
	if err != nil {
		t.Fatalf("LoadBrowserHelperFile: %v", err)
	}
	if len(strs) != 2 || strs[0] != "chrome/114.0|2" {
		t.Errorf("strs = %v", strs)
	}
}

func TestLoadHeadersOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "headers-order.json")
	if err := os.WriteFile(path, []byte(`{"chrome":["Host","User-Agent"]}`), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	order, err := LoadHeadersOrder(path)
	if err != nil {
		t.Fatalf("LoadHeadersOrder: %v", err)
	}
	if len(order["chrome"]) != 2 || order["chrome"][0] != "Host" {
		t.Errorf("order = %v", order)
	}
}
