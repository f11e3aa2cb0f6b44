package domain

type ResolvedItem struct {
	ID          string
	Title       string
	PublishDate string
	MediaURL    string
	AudioURL    string
	IsManifest  bool
}

func (r ResolvedItem) HasSplitStreams() bool {
	return r.AudioURL != ""
}

type EncoderSelection struct {
	Codec  string
	Name   string
	PixFmt string
	Flags  []string
}

func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
