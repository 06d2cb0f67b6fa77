// Package ytdlp shells out to the yt-dlp binary for YouTube video
// metadata and subtitle tracks. Only --dump-json probing is used; the
// bot never downloads media.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/pkg/constants"
)

// DefaultBinary is the yt-dlp executable looked up on PATH
const DefaultBinary = "yt-dlp"

// ErrNoSubtitles means the video has no usable English subtitle track
var ErrNoSubtitles = errors.New("no english subtitles available")

// Caption is one subtitle track variant
type Caption struct {
	URL string `json:"url"`
	Ext string `json:"ext"`
}

// VideoInfo is the slice of yt-dlp's info JSON the bot consumes
type VideoInfo struct {
	ID                string               `json:"id"`
	Title             string               `json:"title"`
	Subtitles         map[string][]Caption `json:"subtitles"`
	AutomaticCaptions map[string][]Caption `json:"automatic_captions"`
}

// SubtitleURL picks the transcript source: manual English subtitles
// first, then automatic English captions in VTT format. Empty when
// neither exists.
func (v *VideoInfo) SubtitleURL() string {
	if tracks, ok := v.Subtitles["en"]; ok && len(tracks) > 0 {
		return tracks[0].URL
	}
	if tracks, ok := v.AutomaticCaptions["en"]; ok {
		for _, caption := range tracks {
			if caption.Ext == "vtt" {
				return caption.URL
			}
		}
	}
	return ""
}

// Runner invokes yt-dlp and fetches the subtitle tracks it reports
type Runner struct {
	Binary string
	client *http.Client
}

// New creates a runner using the yt-dlp binary from PATH
func New() *Runner {
	return &Runner{
		Binary: DefaultBinary,
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
	}
}

// Probe runs yt-dlp against the URL and parses its info JSON
func (r *Runner) Probe(ctx context.Context, videoURL string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, r.Binary, "--dump-json", "--skip-download", "--no-warnings", videoURL)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.WithFields(logrus.Fields{
			"url":   videoURL,
			"error": err,
		}).Error("yt-dlp-probe-failed")
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, firstLine(stderr.String()))
	}

	var info VideoInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("yt-dlp output parse failed: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"url":   videoURL,
		"title": info.Title,
	}).Debug("yt-dlp-probe-complete")
	return &info, nil
}

// Transcript probes the video, downloads its subtitle track and
// returns the title and the cleaned transcript text.
func (r *Runner) Transcript(ctx context.Context, videoURL string) (string, string, error) {
	info, err := r.Probe(ctx, videoURL)
	if err != nil {
		return "", "", err
	}

	title := info.Title
	if title == "" {
		title = "Unknown Video"
	}

	subURL := info.SubtitleURL()
	if subURL == "" {
		return title, "", ErrNoSubtitles
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subURL, nil)
	if err != nil {
		return title, "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return title, "", fmt.Errorf("subtitle download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return title, "", fmt.Errorf("subtitle download failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return title, "", err
	}

	transcript := ParseVTT(string(body))
	if transcript == "" {
		return title, "", ErrNoSubtitles
	}
	return title, transcript, nil
}

var (
	vttTagPattern    = regexp.MustCompile(`<[^>]+>`)
	vttEntityPattern = regexp.MustCompile(`&[a-zA-Z]+;`)
	vttCuePattern    = regexp.MustCompile(`^\d+$`)
)

// ParseVTT extracts clean text from WebVTT subtitle content
func ParseVTT(content string) string {
	var textLines []string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" ||
			strings.HasPrefix(line, "WEBVTT") ||
			strings.HasPrefix(line, "NOTE") ||
			strings.Contains(line, "-->") ||
			vttCuePattern.MatchString(line) {
			continue
		}

		clean := vttTagPattern.ReplaceAllString(line, "")
		clean = vttEntityPattern.ReplaceAllString(clean, "")
		clean = strings.TrimSpace(clean)
		if clean != "" {
			textLines = append(textLines, clean)
		}
	}

	return strings.Join(textLines, " ")
}

var youtubeURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/embed/[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/v/[\w-]+`),
}

// IsYouTubeURL reports whether the string looks like a YouTube video URL
func IsYouTubeURL(candidate string) bool {
	for _, pattern := range youtubeURLPatterns {
		if pattern.MatchString(candidate) {
			return true
		}
	}
	return false
}

var songByArtistPattern = regexp.MustCompile(`^"([^"]+)"\s+by\s+(.+)`)

// SearchURL builds a YouTube search link for a song suggestion.
// Input in the form `"Song" by Artist` is rearranged to "Artist Song"
// for better search results; anything else is searched verbatim.
func SearchURL(songText string) string {
	query := songText
	if m := songByArtistPattern.FindStringSubmatch(songText); m != nil {
		query = m[2] + " " + m[1]
	}
	return "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
