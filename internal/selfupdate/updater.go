package selfupdate

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	ErrDevBuild      = errors.New("cannot update a development build")
	ErrAlreadyLatest = errors.New("already running the latest version")
	ErrChecksum      = errors.New("checksum verification failed")
)

const (
	binaryName        = "roadprep"
	windowsBinaryName = "roadprep.exe"
)

type UpdateInput struct {
	CurrentVersion string
	TargetVersion  string
}

type UpdateProgress struct {
	Stage   string
	Message string
}

// releaseAsset names the downloadable pieces of one release for one
// platform.
type releaseAsset struct {
	Name         string
	ArchiveURL   string
	ChecksumsURL string
}

// Update replaces the running binary with the target release (the latest
// one when TargetVersion is empty). The release's checksum file is
// fetched first so the archive download can be rejected before anything
// touches the filesystem.
func (c *Checker) Update(ctx context.Context, input *UpdateInput, progress func(UpdateProgress)) error {
	if input.CurrentVersion == "(devel)" {
		return ErrDevBuild
	}

	tag := input.TargetVersion
	if tag == "" {
		progress(UpdateProgress{Stage: "check", Message: "Checking for latest version..."})
		result, err := c.Check(ctx, &CheckInput{Version: input.CurrentVersion})
		if err != nil {
			return fmt.Errorf("check for updates: %w", err)
		}
		if !result.UpdateAvailable {
			return ErrAlreadyLatest
		}
		tag = result.LatestVersion
	}

	asset, err := c.assetFor(tag, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}

	progress(UpdateProgress{Stage: "verify", Message: "Fetching release checksums..."})
	sums, err := c.fetch(ctx, asset.ChecksumsURL)
	if err != nil {
		return fmt.Errorf("download checksums: %w", err)
	}
	wantHex, ok := parseChecksums(sums)[asset.Name]
	if !ok {
		return fmt.Errorf("release %s has no checksum for %s", tag, asset.Name)
	}

	progress(UpdateProgress{Stage: "download", Message: fmt.Sprintf("Downloading %s...", tag)})
	archive, err := c.fetchVerified(ctx, asset.ArchiveURL, wantHex)
	if err != nil {
		return fmt.Errorf("download archive: %w", err)
	}

	progress(UpdateProgress{Stage: "extract", Message: "Extracting binary..."})
	binary, err := extractBinary(archive, asset.Name)
	if err != nil {
		return fmt.Errorf("extract binary: %w", err)
	}

	progress(UpdateProgress{Stage: "apply", Message: "Applying update..."})
	target, err := c.execPath()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}
	if err := swapBinary(target, binary); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	progress(UpdateProgress{Stage: "done", Message: fmt.Sprintf("Updated to %s", tag)})
	return nil
}

// assetFor resolves the release asset for one platform. Archives are
// named roadprep_<tag>_<os>_<arch>; Windows ships zips, everything else
// tarballs, and macOS publishes a universal binary under the "all"
// pseudo-arch. Each release carries its own checksum file.
func (c *Checker) assetFor(tag, goos, goarch string) (releaseAsset, error) {
	name, err := assetNameFor(tag, goos, goarch)
	if err != nil {
		return releaseAsset{}, err
	}
	prefix := fmt.Sprintf("%s/%s/%s/releases/download/%s",
		strings.TrimRight(c.downloadBaseURL, "/"), c.owner, c.repo, tag)
	return releaseAsset{
		Name:         name,
		ArchiveURL:   prefix + "/" + name,
		ChecksumsURL: fmt.Sprintf("%s/roadprep_%s_checksums.txt", prefix, tag),
	}, nil
}

func assetNameFor(tag, goos, goarch string) (string, error) {
	switch goos {
	case "darwin":
		return fmt.Sprintf("roadprep_%s_darwin_all.tar.gz", tag), nil
	case "linux":
		switch goarch {
		case "amd64", "arm64", "386":
			return fmt.Sprintf("roadprep_%s_linux_%s.tar.gz", tag, goarch), nil
		}
	case "windows":
		switch goarch {
		case "amd64", "arm64":
			return fmt.Sprintf("roadprep_%s_windows_%s.zip", tag, goarch), nil
		}
	}
	return "", fmt.Errorf("no release asset for %s/%s", goos, goarch)
}

func (c *Checker) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// fetchVerified downloads url and rejects the payload unless its SHA-256
// digest matches wantHex.
func (c *Checker) fetchVerified(ctx context.Context, url, wantHex string) ([]byte, error) {
	body, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(body)
	if got := hex.EncodeToString(sum[:]); got != wantHex {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrChecksum, wantHex, got)
	}
	return body, nil
}

// parseChecksums reads a sha256sum-style file: one "<hex>  <filename>"
// pair per line, unparsable lines skipped.
func parseChecksums(data []byte) map[string]string {
	sums := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		sums[fields[1]] = fields[0]
	}
	return sums
}

// extractBinary pulls the roadprep executable out of a release archive.
func extractBinary(archive []byte, assetName string) ([]byte, error) {
	if strings.HasSuffix(assetName, ".zip") {
		zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
		if err != nil {
			return nil, fmt.Errorf("open zip: %w", err)
		}
		for _, f := range zr.File {
			if filepath.Base(f.Name) != windowsBinaryName {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			return data, err
		}
		return nil, fmt.Errorf("%q not found in %s", windowsBinaryName, assetName)
	}

	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%q not found in %s", binaryName, assetName)
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg && filepath.Base(hdr.Name) == binaryName {
			return io.ReadAll(tr)
		}
	}
}

// swapBinary replaces the executable at target with data. The new binary
// is staged as a sibling file and the old one kept as a ".old" backup
// until the swap lands, so a failed rename can be rolled back and the
// install is never left without a working binary.
func swapBinary(target string, data []byte) error {
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("stat target: %w", err)
	}

	staged, err := os.CreateTemp(filepath.Dir(target), ".roadprep-*.new")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	stagedPath := staged.Name()
	defer func() { _ = os.Remove(stagedPath) }()

	if _, err := staged.Write(data); err != nil {
		_ = staged.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := staged.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Chmod(stagedPath, info.Mode()); err != nil {
		return fmt.Errorf("chmod staging file: %w", err)
	}

	backup := target + ".old"
	if err := os.Rename(target, backup); err != nil {
		return fmt.Errorf("back up running binary: %w", err)
	}
	if err := os.Rename(stagedPath, target); err != nil {
		if rbErr := os.Rename(backup, target); rbErr != nil {
			return fmt.Errorf("swap binaries: %v (rollback failed: %v)", err, rbErr)
		}
		return fmt.Errorf("swap binaries: %w", err)
	}
	_ = os.Remove(backup)
	return nil
}
