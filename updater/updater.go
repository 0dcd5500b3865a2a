// Package updater replaces the running binary with the latest GitHub
// release.
package updater

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"runcell/version"
)

const (
	releaseAPIURL = "https://api.github.com/repos/runcell-dev/runcell/releases/latest"
	checksumsName = "SHA256SUMS"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

type release struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// UpdateInfo describes an available update for this platform.
type UpdateInfo struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	DownloadURL    string
	ChecksumURL    string
}

// CheckForUpdates fetches the latest release and compares it against the
// built-in version.
func CheckForUpdates(ctx context.Context) (*UpdateInfo, error) {
	current := version.Get()

	rel, err := fetchLatestRelease(ctx)
	if err != nil {
		return nil, err
	}

	info := &UpdateInfo{
		Available:      isNewerVersion(current, rel.TagName),
		CurrentVersion: current,
		LatestVersion:  rel.TagName,
	}
	if !info.Available {
		return info, nil
	}

	assetName := assetNameForPlatform(rel.TagName)
	for _, asset := range rel.Assets {
		switch asset.Name {
		case assetName:
			info.DownloadURL = asset.BrowserDownloadURL
		case checksumsName:
			info.ChecksumURL = asset.BrowserDownloadURL
		}
	}
	if info.DownloadURL == "" {
		return nil, fmt.Errorf("no release asset for platform %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	return info, nil
}

func fetchLatestRelease(ctx context.Context) (*release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseAPIURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no releases published")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("release API returned status %d: %s", resp.StatusCode, string(body))
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// isNewerVersion reports whether latest should replace current. A dev build
// always updates.
func isNewerVersion(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")
	if current == "dev" {
		return true
	}
	return current != latest && latest > current
}

// assetNameForPlatform returns the release asset name for this platform,
// e.g. runcell-v0.3.0-linux-amd64.tar.gz.
func assetNameForPlatform(tag string) string {
	ext := ".tar.gz"
	if runtime.GOOS == "windows" {
		ext = ".zip"
	}
	return fmt.Sprintf("runcell-%s-%s-%s%s", tag, runtime.GOOS, runtime.GOARCH, ext)
}

// DownloadAndInstall downloads the release archive, verifies its checksum
// when one is published, and swaps the running binary.
func DownloadAndInstall(ctx context.Context, info *UpdateInfo) error {
	tmpDir, err := os.MkdirTemp("", "runcell-update-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, filepath.Base(info.DownloadURL))
	if err := downloadFile(ctx, archivePath, info.DownloadURL); err != nil {
		return fmt.Errorf("failed to download update: %w", err)
	}

	if info.ChecksumURL != "" {
		checksumPath := filepath.Join(tmpDir, checksumsName)
		if err := downloadFile(ctx, checksumPath, info.ChecksumURL); err != nil {
			return fmt.Errorf("failed to download checksums: %w", err)
		}
		if err := verifyChecksum(archivePath, checksumPath); err != nil {
			return fmt.Errorf("checksum verification failed: %w", err)
		}
	}

	binaryPath, err := extractBinary(archivePath, tmpDir)
	if err != nil {
		return fmt.Errorf("failed to extract binary: %w", err)
	}

	if err := replaceBinary(binaryPath); err != nil {
		return fmt.Errorf("failed to replace binary: %w", err)
	}

	return nil
}

func downloadFile(ctx context.Context, dest, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func verifyChecksum(archivePath, checksumPath string) error {
	data, err := os.ReadFile(checksumPath)
	if err != nil {
		return err
	}

	expected := ""
	name := filepath.Base(archivePath)
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			expected = fields[0]
			break
		}
	}
	if expected == "" {
		return fmt.Errorf("no checksum found for %s", name)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return err
	}

	actual := hex.EncodeToString(hash.Sum(nil))
	if actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// extractBinary pulls the single regular file out of the tar.gz archive.
func extractBinary(archivePath, destDir string) (string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return "", err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		destPath := filepath.Join(destDir, filepath.Base(header.Name))
		outFile, err := os.Create(destPath)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(outFile, tr); err != nil {
			outFile.Close()
			return "", err
		}
		outFile.Close()

		if err := os.Chmod(destPath, 0755); err != nil {
			return "", err
		}
		return destPath, nil
	}

	return "", fmt.Errorf("no binary found in archive")
}

// replaceBinary swaps the current executable for the new one, restoring the
// backup if the copy fails.
func replaceBinary(newBinaryPath string) error {
	currentPath, err := os.Executable()
	if err != nil {
		return err
	}
	currentPath, err = filepath.EvalSymlinks(currentPath)
	if err != nil {
		return err
	}

	backupPath := currentPath + ".backup"
	if err := os.Rename(currentPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup current binary: %w", err)
	}

	if err := copyFile(newBinaryPath, currentPath); err != nil {
		os.Rename(backupPath, currentPath)
		return fmt.Errorf("failed to copy new binary: %w", err)
	}

	if err := os.Chmod(currentPath, 0755); err != nil {
		return err
	}

	os.Remove(backupPath)
	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}
