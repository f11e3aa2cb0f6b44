package domain

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

type Tools struct {
	FFmpeg string
	YtDlp  string
}

// LocateTools prefers binaries shipped next to the running executable over
// whatever happens to be on PATH.
func LocateTools() (Tools, error) {
	return Tools{}.Complete()
}

// Complete fills any unset tool path by discovery, keeping paths that are
// already set.
func (t Tools) Complete() (Tools, error) {
	if t.FFmpeg == "" {
		path, err := locate("ffmpeg")
		if err != nil {
			return Tools{}, ErrTranscoderNotFound
		}
		t.FFmpeg = path
	}
	if t.YtDlp == "" {
		path, err := locate("yt-dlp")
		if err != nil {
			return Tools{}, ErrResolverNotFound
		}
		t.YtDlp = path
	}
	return t, nil
}

func locate(name string) (string, error) {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), name)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	return exec.LookPath(name)
}
