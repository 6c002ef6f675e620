// Package loader implements network-file loading:
// pure I/O and decoding that turns a packaged network
// description — either a zip archive's sole JSON member or a bare JSON
// file, on disk or embedded — into the node definitions a
// bayesian.Network is built from. It performs no sampling and no
// validation beyond "is this valid JSON shaped like a network file."
package loader

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"idsynth/internal/bayesian"
)

// Sentinel tokens used throughout the training data.
const (
	MissingValueToken = "*MISSING_VALUE*"
	StringifiedPrefix = "*STRINGIFIED*"
)

type networkFile struct {
	Nodes []bayesian.NodeDefinition `json:"nodes"`
}

// LoadFile reads a network description from path. If path ends in .zip,
// the first .json member of the archive is decoded; otherwise path is
// read and decoded directly as JSON.
func LoadFile(path string) ([]bayesian.NodeDefinition, error) {
	if filepath.Ext(path) == ".zip" {
		return loadZip(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: reading %s", path)
	}
	return decode(data)
}

// LoadFS reads a network description from name inside fsys — typically
// an embed.FS baked into the binary, so there is no "download the
// model" install step: the data simply travels with the binary.
func LoadFS(fsys fs.FS, name string) ([]bayesian.NodeDefinition, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: reading %s from embedded fs", name)
	}
	if filepath.Ext(name) == ".zip" {
		return decodeZipBytes(data)
	}
	return decode(data)
}

func loadZip(path string) ([]bayesian.NodeDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: reading %s", path)
	}
	return decodeZipBytes(data)
}

func decodeZipBytes(data []byte) ([]bayesian.NodeDefinition, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "loader: opening zip archive")
	}

	var member *zip.File
	for _, f := range r.File {
		if filepath.Ext(f.Name) == ".json" {
			member = f
			break
		}
	}
	if member == nil {
		return nil, errors.New("loader: zip archive contains no .json member")
	}

	rc, err := member.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "loader: opening %s in archive", member.Name)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: reading %s in archive", member.Name)
	}
	return decode(content)
}

func decode(content []byte) ([]bayesian.NodeDefinition, error) {
	var nf networkFile
	if err := json.Unmarshal(content, &nf); err != nil {
		return nil, errors.Wrap(err, "loader: decoding network definition JSON")
	}
	return nf.Nodes, nil
}

// LoadBrowserHelperFile decodes the flat array of "*BROWSER_HTTP"-shaped
// strings used to enumerate known browser/http-version combinations.
func LoadBrowserHelperFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: reading %s", path)
	}
	var strs []string
	if err := json.Unmarshal(data, &strs); err != nil {
		return nil, errors.Wrap(err, "loader: decoding browser helper file")
	}
	return strs, nil
}

// LoadHeadersOrder decodes the browser-name → ordered-header-list file.
func LoadHeadersOrder(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: reading %s", path)
	}
	var order map[string][]string
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, errors.Wrap(err, "loader: decoding headers order file")
	}
	return order, nil
}
