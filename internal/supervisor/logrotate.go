package supervisor

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// RotateLog compresses the daemon log at path into path+".gz" if it
// exceeds maxBytes, then truncates the original so the next run starts
// fresh. Called once at daemon startup; unportd does not rotate mid-run.
func RotateLog(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() <= maxBytes {
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s.gz: %w", path, err)
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		return fmt.Errorf("compress %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		return err
	}

	return os.Truncate(path, 0)
}
