package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"boobot/internal/logger"
)

// Result is the outcome of routing one invocation.
type Result struct {
	// Reply is the winning plugin's answer, empty when nobody answered.
	Reply string
	// Matched reports whether at least one enabled plugin owns the command.
	Matched bool
	// PluginName names the plugin that produced Reply.
	PluginName string
	// Err joins the handler errors seen before dispatch gave up. It is nil
	// whenever Reply is non-empty.
	Err error
}

// Dispatcher routes parsed invocations to plugins. Plugins are tried in
// registration order; the first non-empty reply wins. A handler error or
// panic is logged and dispatch continues to the next owner, so one broken
// plugin never takes down a shared command word.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher returns a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch routes one invocation. The enabled plugin list is captured once
// before any handler runs, so an in-flight call keeps the instance it
// started with even if a reload swaps the registry entry mid-call.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) Result {
	var result Result
	var errs []error

	for _, reg := range d.registry.snapshot(true) {
		if !ownsCommand(reg.plugin, inv.Command) {
			continue
		}
		result.Matched = true

		logger.WithFields(logrus.Fields{
			"plugin":  reg.name,
			"command": inv.Command,
			"user":    inv.UserID,
			"room":    inv.RoomID,
		}).Debug("dispatching-command")

		reply, err := invoke(ctx, reg.plugin, inv)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"plugin":  reg.name,
				"command": inv.Command,
				"error":   err,
			}).Error("plugin-command-failed")
			errs = append(errs, fmt.Errorf("%s: %w", reg.name, err))
			continue
		}
		if reply == "" {
			// Plugin declined; keep trying later owners.
			continue
		}

		result.Reply = reply
		result.PluginName = reg.name
		return result
	}

	result.Err = errors.Join(errs...)
	return result
}

// NotifyObservers delivers msg to every enabled plugin that implements
// Observer, in registration order. Each observer runs isolated: a panic is
// logged and counted, never propagated, so a broken archive sink cannot
// stall message routing. Returns the number of observers that panicked.
func (d *Dispatcher) NotifyObservers(ctx context.Context, msg Message) int {
	panicked := 0
	for _, reg := range d.registry.snapshot(true) {
		observer, ok := reg.plugin.(Observer)
		if !ok {
			continue
		}
		if !observe(ctx, reg.name, observer, msg) {
			panicked++
		}
	}
	return panicked
}

// invoke runs one handler with panic recovery so a crashing plugin is just
// an error to the dispatch loop.
func invoke(ctx context.Context, p Plugin, inv Invocation) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply = ""
			err = fmt.Errorf("plugin panicked: %v", r)
		}
	}()
	return p.HandleCommand(ctx, inv)
}

func observe(ctx context.Context, name string, o Observer, msg Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			logger.WithFields(logrus.Fields{
				"plugin": name,
				"panic":  r,
			}).Error("plugin-observer-panicked")
		}
	}()
	o.ObserveMessage(ctx, msg)
	return true
}

func ownsCommand(p Plugin, command string) bool {
	for _, cmd := range p.Commands() {
		if strings.EqualFold(cmd, command) {
			return true
		}
	}
	return false
}
