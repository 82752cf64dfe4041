/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractArtifact writes data into dir, unpacking it as a (optionally
// gzipped) tar archive when the bytes look like one, otherwise writing the
// bytes as a single SKILL.md file.
func extractArtifact(data []byte, dir string) error {
	reader, isTar := tarReader(data)
	if isTar {
		return extractTar(reader, dir)
	}
	return os.WriteFile(filepath.Join(dir, "SKILL.md"), data, 0o644)
}

func tarReader(data []byte) (io.Reader, bool) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, false
		}
		tr := tar.NewReader(gz)
		if _, err := tr.Next(); err != nil {
			return nil, false
		}
		gz2, _ := gzip.NewReader(bytes.NewReader(data))
		return tar.NewReader(gz2), true
	}
	tr := tar.NewReader(bytes.NewReader(data))
	if _, err := tr.Next(); err != nil {
		return nil, false
	}
	return tar.NewReader(bytes.NewReader(data)), true
}

func extractTar(r io.Reader, dir string) error {
	tr, ok := r.(*tar.Reader)
	if !ok {
		return errors.New("owlhub: expected tar reader")
	}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name := filepath.Clean(hdr.Name)
		if strings.HasPrefix(name, "..") {
			continue // reject path traversal
		}
		target := filepath.Join(dir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
