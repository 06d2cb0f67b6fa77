package youtube

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// transcriptRecord is one cached video transcript, stored as a JSONL line.
type transcriptRecord struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Transcript string `json:"transcript"`
	CachedAt   int64  `json:"cached_at"`
}

// roomKeyPattern strips everything unsafe in a file name.
var roomKeyPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// transcriptCache keeps the most recent transcripts per room so follow-up
// questions can run against them. Entries survive reloads through one
// JSONL file per room under dir.
type transcriptCache struct {
	mu         sync.RWMutex
	dir        string
	maxPerRoom int
	rooms      map[string][]transcriptRecord
}

func newTranscriptCache(dir string, maxPerRoom int) *transcriptCache {
	return &transcriptCache{
		dir:        dir,
		maxPerRoom: maxPerRoom,
		rooms:      make(map[string][]transcriptRecord),
	}
}

// load reads every room file under the cache dir. Corrupted lines are
// skipped so one bad record never loses a room's history.
func (c *transcriptCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, entry.Name()))
		if err != nil {
			continue
		}

		var records []transcriptRecord
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var rec transcriptRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		if len(records) > c.maxPerRoom {
			records = records[len(records)-c.maxPerRoom:]
		}
		if len(records) > 0 {
			c.rooms[strings.TrimSuffix(entry.Name(), ".jsonl")] = records
		}
	}
	return nil
}

// Put caches a transcript as the room's newest entry. Re-caching a URL
// replaces its old entry. Oldest entries fall off past maxPerRoom.
func (c *transcriptCache) Put(roomID, url, title, transcript string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := roomKey(roomID)
	records := make([]transcriptRecord, 0, len(c.rooms[key])+1)
	for _, rec := range c.rooms[key] {
		if rec.URL != url {
			records = append(records, rec)
		}
	}
	records = append(records, transcriptRecord{
		URL:        url,
		Title:      title,
		Transcript: transcript,
		CachedAt:   time.Now().UnixMilli(),
	})
	if len(records) > c.maxPerRoom {
		records = records[len(records)-c.maxPerRoom:]
	}
	c.rooms[key] = records

	return c.writeRoom(key, records)
}

// Latest returns the room's most recently cached transcript.
func (c *transcriptCache) Latest(roomID string) (title, transcript string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := c.rooms[roomKey(roomID)]
	if len(records) == 0 {
		return "", "", false
	}
	last := records[len(records)-1]
	return last.Title, last.Transcript, true
}

// writeRoom persists one room's records. Must be called holding the lock.
func (c *transcriptCache) writeRoom(key string, records []transcriptRecord) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(c.dir, key+".jsonl"), buf.Bytes(), 0644)
}

// roomKey turns a composite room ID into a safe file name.
func roomKey(roomID string) string {
	return roomKeyPattern.ReplaceAllString(roomID, "_")
}
