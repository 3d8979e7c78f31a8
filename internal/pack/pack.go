// Package pack bundles a finished browser build into a deployable zip.
package pack

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"lukechampine.com/blake3"

	"github.com/glistengine/gipwebgl/internal/ctxlog"
)

// WebExtensions are the file types a browser deployment needs.
var WebExtensions = []string{".html", ".js", ".wasm", ".data", ".map"}

// canonical are the outputs Emscripten writes for a project, in order.
var canonical = []string{".html", ".js", ".wasm", ".data"}

// PackagingError reports a package that could not be written.
type PackagingError struct {
	Project string
	Err     error
}

func (e *PackagingError) Error() string { return fmt.Sprintf("package %s: %v", e.Project, e.Err) }
func (e *PackagingError) Unwrap() error { return e.Err }

// File is one packaged artifact.
type File struct {
	Name   string // name inside the zip
	Path   string
	Size   int64
	Digest string // BLAKE3-256, hex
}

// Result describes a written package.
type Result struct {
	Path    string
	Files   []File
	Missing []string // canonical outputs that were not produced
	Size    int64
}

// Package writes <buildDir>/../<project>_webgl.zip from the web artifacts in
// buildDir, followed by a README.txt manifest.
func Package(ctx context.Context, buildDir, project string) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	fi, err := os.Stat(buildDir)
	if err != nil {
		return nil, &PackagingError{Project: project, Err: fmt.Errorf("build directory: %w", err)}
	}
	if !fi.IsDir() {
		return nil, &PackagingError{Project: project, Err: fmt.Errorf("build directory %s is not a directory", buildDir)}
	}

	res := &Result{Path: filepath.Join(filepath.Dir(buildDir), project+"_webgl.zip")}
	files, missing, err := Collect(buildDir, project)
	if err != nil {
		return nil, &PackagingError{Project: project, Err: err}
	}
	res.Missing = missing
	for _, m := range missing {
		logger.Info("output not found, may not be needed", "file", m)
	}

	if err := write(res.Path, project, files); err != nil {
		os.Remove(res.Path)
		return nil, &PackagingError{Project: project, Err: err}
	}
	res.Files = files
	if fi, err := os.Stat(res.Path); err == nil {
		res.Size = fi.Size()
	}
	logger.Info("package created", "path", res.Path, "files", len(files), "bytes", res.Size)
	return res, nil
}

// Collect selects the artifacts: the canonical outputs named after project
// when present, then any other file under buildDir with a web extension
// whose name is not yet taken and does not start with a dot.
func Collect(buildDir, project string) (files []File, missing []string, err error) {
	taken := make(map[string]bool)
	for _, ext := range canonical {
		name := project + ext
		path := filepath.Join(buildDir, name)
		if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
			missing = append(missing, name)
			continue
		}
		files = append(files, File{Name: name, Path: path})
		taken[name] = true
	}

	var extra []File
	err = filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if taken[name] || strings.HasPrefix(name, ".") || !isWeb(name) {
			return nil
		}
		taken[name] = true
		extra = append(extra, File{Name: name, Path: path})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return append(files, extra...), missing, nil
}

func isWeb(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, w := range WebExtensions {
		if ext == w {
			return true
		}
	}
	return false
}

func write(dest, project string, files []File) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for i := range files {
		if err := addFile(zw, &files[i]); err != nil {
			zw.Close()
			return fmt.Errorf("add %s: %w", files[i].Name, err)
		}
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "README.txt", Method: zip.Deflate})
	if err != nil {
		zw.Close()
		return err
	}
	if _, err := io.WriteString(w, Readme(project, files)); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

func addFile(zw *zip.Writer, file *File) error {
	src, err := os.Open(file.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = file.Name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	h := blake3.New(32, nil)
	n, err := io.Copy(io.MultiWriter(w, h), src)
	if err != nil {
		return err
	}
	file.Size = n
	file.Digest = hex.EncodeToString(h.Sum(nil))
	return nil
}

// Readme returns the deployment notes for project listing files.
func Readme(project string, files []File) string {
	sorted := append([]File(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	title := "WebGL Deployment Package for " + project
	fmt.Fprintf(&b, "%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	b.WriteString("This package contains the Emscripten-compiled WebGL version of your project.\n\n")
	b.WriteString("DEPLOYMENT:\n")
	b.WriteString("1. Extract all files to your web server directory\n")
	fmt.Fprintf(&b, "2. Access %s.html through a web server (NOT file://)\n\n", project)
	b.WriteString("SIMPLE LOCAL WEB SERVER:\n")
	b.WriteString("- Python: python -m http.server 8000\n")
	b.WriteString("- Node.js: npx serve .\n")
	b.WriteString("- PHP: php -S localhost:8000\n\n")
	b.WriteString("Generated by Emscripten:\n")
	for _, f := range sorted {
		fmt.Fprintf(&b, "- %s\n", f.Name)
	}
	b.WriteString("\nThe .data file (if present) contains your packed assets.\n")
	b.WriteString("The .wasm file contains your compiled application code.\n")
	b.WriteString("The .js file handles WebAssembly loading and browser integration.\n")
	if len(sorted) > 0 {
		b.WriteString("\nBLAKE3 checksums:\n")
		for _, f := range sorted {
			fmt.Fprintf(&b, "%s  %s\n", f.Digest, f.Name)
		}
	}
	return b.String()
}
