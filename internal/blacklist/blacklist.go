// Package blacklist filters scan targets against an exact-IP set and a
// CIDR network list, per spec.md §4.9. The active set is replaced
// wholesale under a lock (copy-on-write) so lookups never block behind
// a reload, and an optional fsnotify watcher reloads the backing file
// on change.
package blacklist

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// minNetworkBits is the smallest prefix length accepted for a CIDR
// entry; anything broader than a /16 is rejected as almost certainly a
// typo that would blacklist scanning itself into silence.
const minNetworkBits = 16

// List holds the active blacklist. Zero value is an empty, usable list.
type List struct {
	mu       sync.RWMutex
	ips      map[string]struct{}
	networks []*net.IPNet
}

// New returns an empty list.
func New() *List {
	return &List{ips: make(map[string]struct{})}
}

// Contains reports whether ip is blacklisted, either by exact match or
// by falling inside a blacklisted network.
func (l *List) Contains(ip string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.ips[ip]; ok {
		return true
	}
	if len(l.networks) == 0 {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range l.networks {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Load replaces the active set with entries parsed from path: one entry
// per line, formatted as "ip[,reason[,added_time[,notes]]]" or
// "cidr[,reason[,added_time[,notes]]]" — only the first field is used to
// match scan targets; the remaining metadata fields are discarded. Blank lines and '#' comments are skipped. A CIDR broader
// than /16 is rejected outright rather than silently narrowed.
func (l *List) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("blacklist: opening %s: %w", path, err)
	}
	defer f.Close()

	ips := make(map[string]struct{})
	var networks []*net.IPNet

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		field := line
		if i := strings.IndexByte(line, ','); i >= 0 {
			field = strings.TrimSpace(line[:i])
		}

		if strings.Contains(field, "/") {
			_, network, err := net.ParseCIDR(field)
			if err != nil {
				return fmt.Errorf("blacklist: line %d: invalid CIDR %q: %w", lineNo, field, err)
			}
			ones, _ := network.Mask.Size()
			if ones < minNetworkBits {
				return fmt.Errorf("blacklist: line %d: network %q is broader than /%d, refusing", lineNo, field, minNetworkBits)
			}
			networks = append(networks, network)
			continue
		}

		if net.ParseIP(field) == nil {
			return fmt.Errorf("blacklist: line %d: invalid IP %q", lineNo, field)
		}
		ips[field] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("blacklist: reading %s: %w", path, err)
	}

	l.mu.Lock()
	l.ips = ips
	l.networks = networks
	l.mu.Unlock()
	return nil
}

// Watcher reloads a List whenever its backing file changes on disk.
type Watcher struct {
	list    *List
	path    string
	log     *zap.Logger
	fsw     *fsnotify.Watcher
	done    chan struct{}
	debounce time.Duration
}

// NewWatcher starts watching path for changes, reloading list on each
// write event after a short debounce (editors often emit several events
// per save).
func NewWatcher(list *List, path string, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("blacklist: creating file watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("blacklist: watching %s: %w", path, err)
	}

	w := &Watcher{
		list:     list,
		path:     path,
		log:      log,
		fsw:      fsw,
		done:     make(chan struct{}),
		debounce: 250 * time.Millisecond,
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("blacklist watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	if err := w.list.Load(w.path); err != nil {
		w.log.Warn("blacklist reload failed, keeping previous set", zap.Error(err))
		return
	}
	w.log.Info("blacklist reloaded", zap.String("path", w.path))
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
