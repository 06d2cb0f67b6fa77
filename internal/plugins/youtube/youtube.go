// Package youtube provides video tools: AI summaries of YouTube videos,
// subtitle extraction as file uploads, and follow-up questions against
// the room's cached transcripts. Subtitle fetching shells out to yt-dlp;
// summarization and Q&A go through OpenRouter.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/internal/openrouter"
	"boobot/internal/plugin"
	"boobot/internal/ytdlp"
)

const (
	chunkSize    = 8000
	chunkOverlap = 800
	maxChunks    = 10

	// maxSubtitleTextLength caps the text fallback when file upload is
	// unsupported.
	maxSubtitleTextLength = 4000
	// maxQuestionContext caps the transcript passed to the Q&A prompt.
	maxQuestionContext = 12000

	// backgroundTimeout bounds one summary, subtitle or question job.
	backgroundTimeout = 5 * time.Minute
)

const usageText = "📺 **YouTube Commands:**\n\n" +
	"• **youtube summary <URL>** - Get AI summary of video\n" +
	"• **youtube subs <URL>** - Get video subtitles\n" +
	"• **youtube <question>** - Ask questions about the last processed video\n\n" +
	"**Examples:**\n" +
	"• `youtube summary https://youtu.be/dQw4w9WgXcQ`\n" +
	"• `youtube What are the main points discussed?`"

// Plugin answers the youtube/yt commands.
type Plugin struct {
	name        string
	version     string
	description string

	ai    *openrouter.Client
	yt    *ytdlp.Runner
	cache *transcriptCache

	host plugin.Host
	log  *logrus.Logger

	// jobs tracks in-flight background work.
	jobs sync.WaitGroup
}

// New builds the youtube plugin from its manifest.
func New(m plugin.Manifest) (plugin.Plugin, error) {
	apiKey := m.String("openrouter_api_key", os.Getenv("OPENROUTER_API_KEY"))
	model := m.String("model", "")
	dataDir := m.String("data_dir", filepath.Join(m.Dir, "transcripts"))
	maxPerRoom := m.Int("max_per_room", 5)

	p := &Plugin{
		name:        m.Name,
		version:     "1.0.0",
		description: "YouTube video processing, summarization, and Q&A functionality",
		ai:          openrouter.New(apiKey, model),
		yt:          ytdlp.New(),
		cache:       newTranscriptCache(dataDir, maxPerRoom),
	}
	if binary := m.String("ytdlp_binary", ""); binary != "" {
		p.yt.Binary = binary
	}
	if m.Version != "" {
		p.version = m.Version
	}
	if m.Description != "" {
		p.description = m.Description
	}
	return p, nil
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return p.name }

// Version implements plugin.Plugin.
func (p *Plugin) Version() string { return p.version }

// Description implements plugin.Plugin.
func (p *Plugin) Description() string { return p.description }

// Commands implements plugin.Plugin.
func (p *Plugin) Commands() []string {
	return []string{"youtube", "yt"}
}

// Initialize implements plugin.Plugin. A missing yt-dlp binary is only a
// warning here; the commands report it when actually used.
func (p *Plugin) Initialize(ctx context.Context, host plugin.Host) error {
	p.host = host
	p.log = logger.GetLogger()

	if err := p.cache.load(); err != nil {
		p.log.WithFields(logrus.Fields{
			"plugin": p.name,
			"error":  err,
		}).Warn("transcript-cache-load-failed")
	}

	if _, err := exec.LookPath(p.yt.Binary); err != nil {
		p.log.WithFields(logrus.Fields{
			"plugin": p.name,
			"binary": p.yt.Binary,
		}).Warn("yt-dlp-binary-not-found")
	}

	p.log.WithFields(logrus.Fields{
		"plugin": p.name,
	}).Info("youtube-plugin-initialized")
	return nil
}

// HandleCommand implements plugin.Plugin.
func (p *Plugin) HandleCommand(ctx context.Context, inv plugin.Invocation) (string, error) {
	switch inv.Command {
	case "youtube", "yt":
		return p.handleYouTube(inv), nil
	default:
		return "", nil
	}
}

// Cleanup implements plugin.Plugin. In-flight background jobs are drained
// before the instance is released.
func (p *Plugin) Cleanup(ctx context.Context) error {
	p.jobs.Wait()
	p.log.WithFields(logrus.Fields{
		"plugin": p.name,
	}).Info("youtube-plugin-cleanup-complete")
	return nil
}

func (p *Plugin) handleYouTube(inv plugin.Invocation) string {
	if inv.Args == "" {
		return usageText
	}

	sub, rest, _ := strings.Cut(inv.Args, " ")
	switch strings.ToLower(sub) {
	case "summary":
		if rest != "" {
			url := strings.TrimSpace(rest)
			if !ytdlp.IsYouTubeURL(url) {
				return "❌ Please provide a valid YouTube URL"
			}
			p.spawn(func(ctx context.Context) { p.summarize(ctx, inv.RoomID, url, inv.IsEdit) })
			return fmt.Sprintf("🔄 Processing YouTube summary for: %s", url)
		}
	case "subs":
		if rest != "" {
			url := strings.TrimSpace(rest)
			if !ytdlp.IsYouTubeURL(url) {
				return "❌ Please provide a valid YouTube URL"
			}
			p.spawn(func(ctx context.Context) { p.subtitles(ctx, inv.RoomID, url, inv.IsEdit) })
			return fmt.Sprintf("🔄 Extracting subtitles from: %s", url)
		}
	}

	// Anything else is a question about the room's latest video.
	if _, _, ok := p.cache.Latest(inv.RoomID); !ok {
		return "❌ No YouTube videos have been processed in this room yet. Use **youtube summary <URL>** first."
	}
	question := inv.Args
	p.spawn(func(ctx context.Context) { p.answer(ctx, inv.RoomID, question, inv.IsEdit) })
	return fmt.Sprintf("🤖 Analyzing question: %s", question)
}

// spawn runs one background job detached from the dispatch context, which
// the engine may cancel as soon as the immediate reply is sent.
func (p *Plugin) spawn(job func(ctx context.Context)) {
	p.jobs.Add(1)
	go func() {
		defer p.jobs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		job(ctx)
	}()
}

// send delivers a background progress or result message. Work triggered
// by an edited command carries the pencil marker on every send.
func (p *Plugin) send(ctx context.Context, roomID string, isEdit bool, text string) {
	if isEdit {
		text = "✏️ " + text
	}
	if err := p.host.SendMessage(ctx, roomID, text); err != nil {
		p.log.WithFields(logrus.Fields{
			"plugin": p.name,
			"room":   roomID,
			"error":  err,
		}).Warn("youtube-send-failed")
	}
}

func (p *Plugin) summarize(ctx context.Context, roomID, url string, isEdit bool) {
	if !p.ai.Enabled() {
		p.send(ctx, roomID, isEdit, "❌ YouTube summary feature requires OPENROUTER_API_KEY in .env file")
		return
	}

	p.send(ctx, roomID, isEdit, "🔄 Extracting subtitles from YouTube video...")

	title, transcript, err := p.yt.Transcript(ctx, url)
	if err != nil {
		if errors.Is(err, ytdlp.ErrNoSubtitles) {
			p.send(ctx, roomID, isEdit, "❌ No subtitles found for this video. The video might not have subtitles or be unavailable.")
		} else {
			p.send(ctx, roomID, isEdit, fmt.Sprintf("❌ Error processing video: %s", err))
		}
		return
	}

	p.send(ctx, roomID, isEdit, "🤖 Generating summary using AI...")
	p.cacheTranscript(roomID, url, title, transcript)

	summary, err := p.summarizeTranscript(ctx, transcript, title)
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"room":  roomID,
			"url":   url,
			"error": err,
		}).Warn("summary-generation-failed")
		p.send(ctx, roomID, isEdit, "❌ Failed to generate summary. Please try again later.")
		return
	}

	p.send(ctx, roomID, isEdit, fmt.Sprintf(
		"📺 **%s**\n\n**Summary:**\n%s\n\n💡 Ask questions about this video using: **youtube: <your question>**",
		title, summary))
}

func (p *Plugin) subtitles(ctx context.Context, roomID, url string, isEdit bool) {
	p.send(ctx, roomID, isEdit, "🔄 Extracting subtitles from YouTube video...")

	title, transcript, err := p.yt.Transcript(ctx, url)
	if err != nil {
		if errors.Is(err, ytdlp.ErrNoSubtitles) {
			p.send(ctx, roomID, isEdit, "❌ No subtitles found for this video.")
		} else {
			p.send(ctx, roomID, isEdit, fmt.Sprintf("❌ Error extracting subtitles: %s", err))
		}
		return
	}

	p.cacheTranscript(roomID, url, title, transcript)

	filename := safeFilename(title) + "_subtitles.txt"
	content := fmt.Sprintf("YouTube Video Subtitles\nTitle: %s\nURL: %s\nExtracted: %s\n%s\n\n%s",
		title, url, time.Now().Format("2006-01-02 15:04:05"), strings.Repeat("-", 50), transcript)

	if err := p.host.SendFile(ctx, roomID, filename, []byte(content)); err != nil {
		p.log.WithFields(logrus.Fields{
			"room":  roomID,
			"file":  filename,
			"error": err,
		}).Warn("subtitle-file-upload-failed")
		p.sendSubtitlesAsText(ctx, roomID, title, transcript, isEdit)
		return
	}

	p.send(ctx, roomID, isEdit, fmt.Sprintf(
		"📺 **%s**\n\n✅ Subtitles uploaded as file: **%s**\n\n💡 Ask questions about this video using: **youtube: <your question>**",
		title, filename))
}

// sendSubtitlesAsText is the fallback when the transport has no file
// support.
func (p *Plugin) sendSubtitlesAsText(ctx context.Context, roomID, title, transcript string, isEdit bool) {
	truncated := ""
	if len(transcript) > maxSubtitleTextLength {
		transcript = transcript[:maxSubtitleTextLength]
		truncated = "...(truncated)"
	}
	p.send(ctx, roomID, isEdit, fmt.Sprintf(
		"📺 **%s**\n\n**Subtitles:**\n%s%s\n\n💡 Ask questions about this video using: **youtube: <your question>**",
		title, transcript, truncated))
}

func (p *Plugin) answer(ctx context.Context, roomID, question string, isEdit bool) {
	title, transcript, ok := p.cache.Latest(roomID)
	if !ok {
		p.send(ctx, roomID, isEdit, "❌ No YouTube videos have been processed in this room yet. Use **youtube summary <URL>** first.")
		return
	}

	p.send(ctx, roomID, isEdit, "🤖 Analyzing transcript and generating answer...")

	if len(transcript) > maxQuestionContext {
		transcript = transcript[:maxQuestionContext] + "...(transcript truncated)"
	}

	prompt := fmt.Sprintf(`Based on the following video transcript for "%s", please answer the user's question accurately and helpfully.

Video Transcript:
%s

User Question: %s

Please provide a clear, accurate answer based only on the information available in the transcript. If the question cannot be answered from the transcript, please say so:`,
		title, transcript, question)

	answer, err := p.ai.Chat(ctx, []openrouter.Message{{Role: "user", Content: prompt}}, openrouter.Options{
		MaxTokens:   600,
		Temperature: 0.2,
	})
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"room":  roomID,
			"error": err,
		}).Warn("question-answer-failed")
		p.send(ctx, roomID, isEdit, "❌ Failed to generate answer. Please try again later.")
		return
	}

	p.send(ctx, roomID, isEdit, fmt.Sprintf(
		"🎯 **Question about \"%s\"**\n\n**Q:** %s\n\n**A:** %s", title, question, answer))
}

func (p *Plugin) cacheTranscript(roomID, url, title, transcript string) {
	if err := p.cache.Put(roomID, url, title, transcript); err != nil {
		p.log.WithFields(logrus.Fields{
			"room":  roomID,
			"error": err,
		}).Warn("transcript-cache-write-failed")
	}
	p.log.WithFields(logrus.Fields{
		"room":  roomID,
		"title": title,
	}).Info("transcript-cached")
}

// summarizeTranscript chunks long transcripts, summarizes each chunk and
// combines the partial summaries into one.
func (p *Plugin) summarizeTranscript(ctx context.Context, transcript, title string) (string, error) {
	chunks := chunkText(transcript, chunkSize, chunkOverlap)

	limit := len(chunks)
	if limit > maxChunks {
		limit = maxChunks
	}

	var summaries []string
	for i, chunk := range chunks[:limit] {
		summary, err := p.summarizeChunk(ctx, chunk, title, i+1, len(chunks))
		if err != nil {
			p.log.WithFields(logrus.Fields{
				"chunk": i + 1,
				"error": err,
			}).Warn("chunk-summary-failed")
			continue
		}
		summaries = append(summaries, summary)
	}

	if len(summaries) == 0 {
		return "", fmt.Errorf("no chunk summaries generated")
	}
	if len(summaries) == 1 {
		return summaries[0], nil
	}

	combined, err := p.combineSummaries(ctx, summaries, title)
	if err != nil {
		// The per-section summaries still make a usable reply.
		return strings.Join(summaries, "\n"), nil
	}
	return combined, nil
}

func (p *Plugin) summarizeChunk(ctx context.Context, chunk, title string, num, total int) (string, error) {
	prompt := fmt.Sprintf(`Please provide a concise summary of this part of the video transcript for "%s".

Transcript excerpt (part %d of %d):
%s

Provide a clear, informative summary of the main points discussed in this section:`,
		title, num, total, chunk)

	return p.ai.Chat(ctx, []openrouter.Message{{Role: "user", Content: prompt}}, openrouter.Options{
		MaxTokens:   500,
		Temperature: 0.3,
	})
}

func (p *Plugin) combineSummaries(ctx context.Context, summaries []string, title string) (string, error) {
	sections := make([]string, len(summaries))
	for i, summary := range summaries {
		sections[i] = fmt.Sprintf("Section %d: %s", i+1, summary)
	}

	prompt := fmt.Sprintf(`Please create a comprehensive summary by combining these section summaries for the video "%s".

Section summaries:
%s

Provide a well-structured, comprehensive summary that captures the main themes and key points:`,
		title, strings.Join(sections, "\n\n"))

	return p.ai.Chat(ctx, []openrouter.Message{{Role: "user", Content: prompt}}, openrouter.Options{
		MaxTokens:   800,
		Temperature: 0.3,
	})
}

// chunkText splits text into overlapping rune chunks.
func chunkText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\w\s-]`)
	filenameSeparators  = regexp.MustCompile(`[-\s]+`)
)

// safeFilename derives an upload-safe file name stem from a video title.
func safeFilename(title string) string {
	name := unsafeFilenameChars.ReplaceAllString(title, "")
	name = strings.TrimSpace(name)
	name = filenameSeparators.ReplaceAllString(name, "-")
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}
