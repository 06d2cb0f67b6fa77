package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
	"boobot/internal/plugin"
	"boobot/internal/transport"
	"boobot/pkg/constants"
)

// shutdownTimeout bounds plugin cleanup at shutdown.
const shutdownTimeout = 5 * time.Second

// Counter keys exposed through Counters(), the status command and the
// status server.
const (
	counterMessagesReceived   = "messages_received"
	counterCommandsDispatched = "commands_dispatched"
	counterCommandsFailed     = "commands_failed"
	counterUnknownCommands    = "unknown_commands"
	counterDroppedNoName      = "dropped_no_name"
	counterRepliesSent        = "replies_sent"
	counterObserverErrors     = "observer_errors"
)

// counters is a mutex-guarded event counter set. Every key exists from the
// start so snapshots always expose the full set.
type counters struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func newCounters() *counters {
	return &counters{
		counts: map[string]uint64{
			counterMessagesReceived:   0,
			counterCommandsDispatched: 0,
			counterCommandsFailed:     0,
			counterUnknownCommands:    0,
			counterDroppedNoName:      0,
			counterRepliesSent:        0,
			counterObserverErrors:     0,
		},
	}
}

func (c *counters) inc(key string) {
	c.add(key, 1)
}

func (c *counters) add(key string, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key] += n
}

func (c *counters) snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]uint64, len(c.counts))
	for key, count := range c.counts {
		out[key] = count
	}
	return out
}

// cachedName is one resolved display name with its fetch time.
type cachedName struct {
	name      string
	fetchedAt time.Time
}

// Bot is the composition root: it owns the plugin registry, loader,
// watcher and dispatcher, the transport adapters, the display-name cache,
// the event counters and the status server, and it implements plugin.Host.
//
// Inbound events flow through a buffered channel consumed by a single
// goroutine, so plugin callbacks for a given room arrive in order.
type Bot struct {
	config     *Config
	registry   *plugin.Registry
	loader     *plugin.Loader
	dispatcher *plugin.Dispatcher
	watcher    *plugin.Watcher

	adapters map[string]transport.Adapter

	events   chan transport.Event
	stop     chan struct{}
	stopOnce sync.Once

	nameMu  sync.Mutex
	names   map[string]cachedName
	nameTTL time.Duration

	counters  *counters
	startedAt time.Time

	status *statusServer
}

// New builds a bot shell from config. Register transports with
// RegisterAdapter and plugin kinds with Loader().RegisterFactory, then
// call Run.
func New(config *Config) *Bot {
	b := &Bot{
		config:    config,
		adapters:  make(map[string]transport.Adapter),
		events:    make(chan transport.Event, constants.MessageChannelBufferSize),
		stop:      make(chan struct{}),
		names:     make(map[string]cachedName),
		nameTTL:   config.NameRefreshInterval(),
		counters:  newCounters(),
		startedAt: time.Now(),
	}
	b.registry = plugin.NewRegistry()
	b.loader = plugin.NewLoader(b.registry, b)
	b.dispatcher = plugin.NewDispatcher(b.registry)
	return b
}

// RegisterAdapter wires a transport into the bot. Call before Run.
func (b *Bot) RegisterAdapter(adapter transport.Adapter) {
	b.adapters[adapter.Platform()] = adapter
}

// Loader returns the plugin loader so callers can register plugin kinds.
func (b *Bot) Loader() *plugin.Loader {
	return b.loader
}

// Run loads plugins, starts the watcher, the transports and the status
// server, then consumes inbound events until ctx is cancelled. Shutdown
// stops the transports, the watcher and the status server, then cleans up
// every plugin in reverse registration order.
func (b *Bot) Run(ctx context.Context) error {
	logger.Info("starting-boobot")

	loaded, failedLoads, err := b.loader.LoadAll(ctx, b.config.Plugins.Dir)
	if err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}

	if b.config.Plugins.HotReload {
		watcher := plugin.NewWatcher(b.loader, b.config.Plugins.Dir, b.config.DebounceInterval())
		if err := watcher.Start(ctx); err != nil {
			logger.WithField("error", err).Warn("plugin-watcher-start-failed")
		} else {
			b.watcher = watcher
		}
	}

	if err := b.startTransports(); err != nil {
		b.shutdown()
		return err
	}

	b.fetchInitialNames(ctx)

	if b.config.StatusServer.Enabled {
		b.status = newStatusServer(b, b.config.StatusServer.Port)
		b.status.start()
	}

	logger.WithFields(logrus.Fields{
		"plugins":   loaded,
		"failed":    failedLoads,
		"platforms": b.platforms(),
	}).Info("boobot-ready")

	for {
		select {
		case <-ctx.Done():
			logger.Info("event-loop-shutting-down")
			b.shutdown()
			return nil
		case ev := <-b.events:
			b.handleEvent(ctx, ev)
		}
	}
}

// startTransports starts every adapter in its own goroutine with panic
// recovery. Start is non-blocking by contract, so results arrive quickly.
// The bot refuses to run when no transport comes up.
func (b *Bot) startTransports() error {
	if len(b.adapters) == 0 {
		return fmt.Errorf("no transports registered")
	}

	results := make(chan error, len(b.adapters))
	for platform, adapter := range b.adapters {
		go func(platform string, adapter transport.Adapter) {
			var err error
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("transport panicked: %v", r)
					logger.WithFields(logrus.Fields{
						"platform": platform,
						"panic":    r,
					}).Error("transport-start-panic-recovered")
				}
				results <- err
			}()
			if err = adapter.Start(b.enqueue); err != nil {
				logger.WithFields(logrus.Fields{
					"platform": platform,
					"error":    err,
				}).Error("failed-to-start-transport")
			} else {
				logger.WithPlatform(platform).Info("transport-started")
			}
		}(platform, adapter)
	}

	started := 0
	for range b.adapters {
		if err := <-results; err == nil {
			started++
		}
	}
	if started == 0 {
		return fmt.Errorf("no transports started")
	}
	return nil
}

// enqueue is the handler every adapter delivers events to. It blocks when
// the buffer is full and bails out during shutdown so a stopping transport
// never wedges on a dead consumer.
func (b *Bot) enqueue(ev transport.Event) {
	select {
	case b.events <- ev:
	case <-b.stop:
	}
}

// fetchInitialNames resolves the bot's display name on every platform,
// retrying a few times per platform. A platform that stays unresolved only
// drops command parsing for its own messages; the next arrival triggers
// another fetch.
func (b *Bot) fetchInitialNames(ctx context.Context) {
	var wg sync.WaitGroup
	for platform := range b.adapters {
		wg.Add(1)
		go func(platform string) {
			defer wg.Done()
			for attempt := 1; attempt <= constants.NameFetchAttempts; attempt++ {
				if attempt > 1 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(constants.NameFetchRetryDelay):
					}
				}
				name, err := b.RefreshDisplayName(ctx, platform)
				if err == nil && name != "" {
					logger.WithFields(logrus.Fields{
						"platform": platform,
						"name":     name,
					}).Info("display-name-resolved")
					return
				}
				logger.WithFields(logrus.Fields{
					"platform": platform,
					"attempt":  attempt,
					"error":    err,
				}).Warn("display-name-fetch-failed")
			}
			logger.WithPlatform(platform).Warn("display-name-unresolved")
		}(platform)
	}
	wg.Wait()
}

func (b *Bot) shutdown() {
	b.stopOnce.Do(func() { close(b.stop) })

	for platform, adapter := range b.adapters {
		if err := adapter.Stop(); err != nil {
			logger.WithFields(logrus.Fields{
				"platform": platform,
				"error":    err,
			}).Warn("transport-stop-failed")
		}
	}
	if b.watcher != nil {
		if err := b.watcher.Close(); err != nil {
			logger.WithField("error", err).Warn("plugin-watcher-close-failed")
		}
	}
	if b.status != nil {
		b.status.shutdown()
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	b.loader.CleanupAll(cleanupCtx)

	logger.Info("boobot-stopped")
}

// handleEvent processes one inbound event: count it, show it to the
// observers, then parse and dispatch when the message addresses the bot.
func (b *Bot) handleEvent(ctx context.Context, ev transport.Event) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	b.counters.inc(counterMessagesReceived)

	body, marked := stripEditMarker(ev.Body)
	isEdit := ev.IsEdit || marked
	roomID := ev.Platform + "/" + ev.Channel

	msg := plugin.Message{
		RoomID:     roomID,
		UserID:     ev.UserID,
		SenderName: ev.SenderName,
		EventID:    ev.EventID,
		Body:       body,
		Platform:   ev.Platform,
		IsEdit:     isEdit,
		Timestamp:  ev.Timestamp,
	}
	if panicked := b.dispatcher.NotifyObservers(ctx, msg); panicked > 0 {
		b.counters.add(counterObserverErrors, uint64(panicked))
	}

	name := b.platformName(ctx, ev.Platform)
	if name == "" {
		b.counters.inc(counterDroppedNoName)
		logger.WithFields(logrus.Fields{
			"platform": ev.Platform,
			"event_id": ev.EventID,
		}).Debug("dropping-message-display-name-unknown")
		return
	}

	word, args, addressed := parseCommand(body, name)
	if !addressed {
		return
	}
	if word == "" {
		b.reply(ctx, roomID, fmt.Sprintf("Please specify a command. Try '%s: help'", name), isEdit)
		return
	}

	inv := plugin.Invocation{
		Command:  word,
		Args:     args,
		RoomID:   roomID,
		UserID:   ev.UserID,
		Platform: ev.Platform,
		IsEdit:   isEdit,
	}
	b.counters.inc(counterCommandsDispatched)
	result := b.dispatcher.Dispatch(ctx, inv)

	switch {
	case result.Reply != "":
		b.reply(ctx, roomID, result.Reply, isEdit)
	case result.Matched && result.Err != nil:
		b.counters.inc(counterCommandsFailed)
		b.reply(ctx, roomID, fmt.Sprintf("⚠️ Error processing command: %s", word), isEdit)
	default:
		b.counters.inc(counterUnknownCommands)
		b.reply(ctx, roomID, fmt.Sprintf("Unknown command: %s. Try '%s: help' for available commands.", word, name), isEdit)
	}
}

// reply sends one engine reply, marking replies to edited commands.
func (b *Bot) reply(ctx context.Context, roomID, text string, isEdit bool) {
	if isEdit {
		text = "✏️ " + text
	}
	if err := b.SendMessage(ctx, roomID, text); err != nil {
		logger.WithFields(logrus.Fields{
			"room":  roomID,
			"error": err,
		}).Error("failed-to-send-reply")
	}
}

// platformName returns the display name used to address the bot on one
// platform, re-fetching when the cache is empty or older than the TTL. A
// failed refresh keeps the previous name; only a platform that has never
// resolved returns "".
func (b *Bot) platformName(ctx context.Context, platform string) string {
	b.nameMu.Lock()
	cached, ok := b.names[platform]
	b.nameMu.Unlock()

	if ok && cached.name != "" && time.Since(cached.fetchedAt) < b.nameTTL {
		return cached.name
	}
	if name, err := b.RefreshDisplayName(ctx, platform); err == nil && name != "" {
		return name
	}
	return cached.name
}

// platforms returns the registered platform names, sorted.
func (b *Bot) platforms() []string {
	names := make([]string, 0, len(b.adapters))
	for platform := range b.adapters {
		names = append(names, platform)
	}
	sort.Strings(names)
	return names
}

func splitRoomID(roomID string) (platform, channel string, err error) {
	platform, channel, ok := strings.Cut(roomID, "/")
	if !ok || platform == "" || channel == "" {
		return "", "", fmt.Errorf("invalid room address: %q", roomID)
	}
	return platform, channel, nil
}

// SendMessage sends text to a composite "platform/channel" room address.
// The adapter applies its platform's length truncation.
func (b *Bot) SendMessage(ctx context.Context, roomID, text string) error {
	platform, channel, err := splitRoomID(roomID)
	if err != nil {
		return err
	}
	adapter, ok := b.adapters[platform]
	if !ok {
		return fmt.Errorf("unknown platform: %s", platform)
	}
	if err := adapter.SendMessage(channel, text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	b.counters.inc(counterRepliesSent)
	logger.WithFields(logrus.Fields{
		"platform": platform,
		"channel":  channel,
		"length":   len(text),
	}).Debug("message-sent")
	return nil
}

// SendFile uploads a file to a room. Platforms without upload support
// return an error so callers can fall back to text.
func (b *Bot) SendFile(ctx context.Context, roomID, filename string, data []byte) error {
	platform, channel, err := splitRoomID(roomID)
	if err != nil {
		return err
	}
	adapter, ok := b.adapters[platform]
	if !ok {
		return fmt.Errorf("unknown platform: %s", platform)
	}
	sender, ok := adapter.(transport.FileSender)
	if !ok {
		return fmt.Errorf("platform %s does not support file uploads", platform)
	}
	if err := sender.SendFile(channel, filename, data); err != nil {
		return fmt.Errorf("failed to send file: %w", err)
	}
	return nil
}

// DisplayName returns the cached display name for platform, or an empty
// string when the name has not resolved yet.
func (b *Bot) DisplayName(platform string) string {
	b.nameMu.Lock()
	defer b.nameMu.Unlock()
	return b.names[platform].name
}

// RefreshDisplayName re-fetches the display name from the platform's
// adapter and caches it.
func (b *Bot) RefreshDisplayName(ctx context.Context, platform string) (string, error) {
	adapter, ok := b.adapters[platform]
	if !ok {
		return "", fmt.Errorf("unknown platform: %s", platform)
	}
	name, err := adapter.DisplayName(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch display name: %w", err)
	}

	b.nameMu.Lock()
	b.names[platform] = cachedName{name: name, fetchedAt: time.Now()}
	b.nameMu.Unlock()

	logger.WithFields(logrus.Fields{
		"platform": platform,
		"name":     name,
	}).Debug("display-name-cached")
	return name, nil
}

// PluginStatus returns a snapshot of the plugin registry.
func (b *Bot) PluginStatus() plugin.Status {
	return b.registry.Status()
}

// AllCommands maps each command word to its owning plugin name.
func (b *Bot) AllCommands() map[string]string {
	return b.registry.AllCommands()
}

// ReloadPlugin reloads one plugin directory by name, or every plugin when
// name is empty. Per-plugin failures during a reload-all are recorded in
// the failed map, not returned.
func (b *Bot) ReloadPlugin(ctx context.Context, name string) error {
	if name == "" {
		_, _, err := b.loader.LoadAll(ctx, b.config.Plugins.Dir)
		return err
	}
	return b.loader.Load(ctx, filepath.Join(b.config.Plugins.Dir, name))
}

// EnablePlugin turns routing on for a loaded plugin.
func (b *Bot) EnablePlugin(name string) bool {
	return b.registry.Enable(name)
}

// DisablePlugin turns routing off for a loaded plugin without unloading it.
func (b *Bot) DisablePlugin(name string) bool {
	return b.registry.Disable(name)
}

// Counters returns a copy of the bot's event counters.
func (b *Bot) Counters() map[string]uint64 {
	return b.counters.snapshot()
}

// StartedAt returns the bot start time.
func (b *Bot) StartedAt() time.Time {
	return b.startedAt
}

// ConfigValue exposes selected non-secret configuration values by key.
func (b *Bot) ConfigValue(key string) string {
	switch key {
	case "platforms":
		return strings.Join(b.platforms(), ", ")
	case "plugins_dir":
		return b.config.Plugins.Dir
	case "hot_reload":
		return strconv.FormatBool(b.config.Plugins.HotReload)
	case "log_level":
		return b.config.Logging.Level
	}
	return ""
}
