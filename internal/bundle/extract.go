package bundle

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

const (
	// maxBundleSize is the maximum size of a compressed bundle
	maxBundleSize int64 = 50 * 1024 * 1024 // 50MB

	// maxSingleFile is the maximum size of a single file in the bundle
	maxSingleFile int64 = 10 * 1024 * 1024 // 10MB

	// maxTotalExtract is the maximum total size of extracted content
	maxTotalExtract int64 = 100 * 1024 * 1024 // 100MB
)

// Extract unpacks a bundle into dstDir, then verifies the tree against
// the bundled manifest. On any error the destination is removed.
func Extract(bundlePath, dstDir string) (*Manifest, error) {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, xerrors.Wrapf(err, "create extract dir %s", dstDir)
	}
	if err := extractTarGz(bundlePath, dstDir); err != nil {
		os.RemoveAll(dstDir)
		return nil, err
	}

	m, err := LoadManifest(os.DirFS(dstDir))
	if err != nil {
		os.RemoveAll(dstDir)
		return nil, err
	}
	if err := m.Verify(os.DirFS(dstDir)); err != nil {
		os.RemoveAll(dstDir)
		return nil, xerrors.Wrap(err, "verify extracted bundle")
	}
	return m, nil
}

// extractTarGz unpacks a .tar.gz to dstDir with traversal and
// decompression-bomb protection.
func extractTarGz(src, dstDir string) error {
	f, err := os.Open(src)
	if err != nil {
		return xerrors.Wrapf(err, "open %s", src)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > maxBundleSize {
		return xerrors.Newf("bundle exceeds max size (%d bytes, limit %d)", info.Size(), maxBundleSize)
	}

	gr, err := gzip.NewReader(f)
	if err != nil {
		return xerrors.Wrap(err, "open gzip")
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	var totalBytes int64

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return xerrors.Wrap(err, "read tar header")
		}

		target, err := sanitizeTarPath(dstDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return xerrors.Wrapf(err, "mkdir %s", target)
			}

		case tar.TypeReg:
			if hdr.Size > maxSingleFile {
				return xerrors.Newf("file %s exceeds max size (%d > %d)", hdr.Name, hdr.Size, maxSingleFile)
			}
			totalBytes += hdr.Size
			if totalBytes > maxTotalExtract {
				return xerrors.Newf("total extracted size exceeds limit (%d bytes, max %d)", totalBytes, maxTotalExtract)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return xerrors.Wrapf(err, "mkdir for %s", target)
			}
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}

		default:
			// symlinks and devices have no business in a content bundle
			return xerrors.Newf("unsupported file type in archive: %s (type=%d)", hdr.Name, hdr.Typeflag)
		}
	}
	return nil
}

// sanitizeTarPath prevents directory traversal attacks
func sanitizeTarPath(dst, name string) (string, error) {
	name = filepath.Clean(name)

	if filepath.IsAbs(name) {
		return "", xerrors.Newf("absolute path in tar: %s", name)
	}
	if strings.Contains(name, "..") {
		return "", xerrors.Newf("path traversal in tar: %s", name)
	}

	target := filepath.Join(dst, name)

	// double-check the result is within dst
	if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), filepath.Clean(dst)+string(os.PathSeparator)) {
		if filepath.Clean(target) != filepath.Clean(dst) {
			return "", xerrors.Newf("path escapes destination: %s", name)
		}
	}

	return target, nil
}

// writeFile writes a file from the tar reader with a size limit.
func writeFile(path string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return xerrors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	lr := io.LimitReader(r, maxSingleFile+1)
	n, err := io.Copy(f, lr)
	if err != nil {
		return xerrors.Wrapf(err, "write %s", path)
	}
	if n > maxSingleFile {
		return xerrors.Newf("file too large: %s (%d bytes)", path, n)
	}
	return nil
}
