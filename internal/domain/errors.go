package domain

import "errors"

var (
	ErrTranscoderNotFound = errors.New("ffmpeg not found")
	ErrResolverNotFound   = errors.New("yt-dlp not found")
	ErrNoPlayableSource   = errors.New("no playable source")
	ErrPreflightFailed    = errors.New("ingest endpoint preflight failed")
)
