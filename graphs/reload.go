package graphs

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/milk9111/motiongraph/motion"
)

// RestoreMode says how much of an instance survived a reload.
type RestoreMode int

const (
	// RestoredFull kept the whole active chain.
	RestoredFull RestoreMode = iota
	// RestoredRoot kept the root state; its sub-graph restarted.
	RestoredRoot
	// RestoredParams kept only the parameters; the instance restarts from
	// its initial state on the next tick.
	RestoredParams
)

func (m RestoreMode) String() string {
	switch m {
	case RestoredFull:
		return "full"
	case RestoredRoot:
		return "root"
	case RestoredParams:
		return "params"
	}
	return fmt.Sprintf("RestoreMode(%d)", int(m))
}

type attempt struct {
	mode RestoreMode
	snap *motion.Snapshot
}

// Reinstance moves old onto a fresh graph built from def. It tries the full
// snapshot first, then the root state alone, then the parameters alone, so
// an edit that removed the active state still keeps the agent's data.
func Reinstance(def *Definition, old *motion.Instance, opts motion.Options) (*motion.Instance, RestoreMode, error) {
	snap, err := old.Snapshot()
	if err != nil {
		return nil, 0, err
	}

	attempts := []attempt{{RestoredFull, snap}}
	if snap.Active != nil && snap.Active.Sub != nil {
		root := *snap
		active := *snap.Active
		active.Sub = nil
		root.Active = &active
		attempts = append(attempts, attempt{RestoredRoot, &root})
	}
	params := *snap
	params.Started = false
	params.Active = nil
	params.Behaviours = nil
	attempts = append(attempts, attempt{RestoredParams, &params})

	var last error
	for _, a := range attempts {
		in, err := def.NewInstance(old.Services(), opts)
		if err != nil {
			return nil, 0, err
		}
		if err := in.Restore(a.snap); err != nil {
			last = err
			continue
		}
		return in, a.mode, nil
	}
	return nil, 0, last
}

// Reload is the outcome of reloading one tracked instance.
type Reload struct {
	Name string
	Old  *motion.Instance
	New  *motion.Instance
	Mode RestoreMode
	Err  error
}

type tracked struct {
	in   *motion.Instance
	opts motion.Options
}

// Reloader recompiles definitions when their files change and moves the
// tracked instances onto the new graphs. It is polled from the host's tick
// loop, so instances are only swapped between ticks.
type Reloader struct {
	dir     string
	watcher *Watcher
	logger  *zap.Logger
	tracked map[string][]*tracked
}

// NewReloader watches dir. The logger may be nil.
func NewReloader(dir string, logger *zap.Logger) (*Reloader, error) {
	w, err := NewWatcher(dir)
	if err != nil {
		return nil, fmt.Errorf("graphs: watch %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		dir:     dir,
		watcher: w,
		logger:  logger,
		tracked: make(map[string][]*tracked),
	}, nil
}

// Track registers in as an instance of the named definition.
func (r *Reloader) Track(name string, in *motion.Instance, opts motion.Options) {
	key := defKey(name)
	r.tracked[key] = append(r.tracked[key], &tracked{in: in, opts: opts})
}

// Poll applies pending file changes without blocking. A definition that no
// longer compiles leaves its instances untouched.
func (r *Reloader) Poll() []Reload {
	changed := make(map[string]bool)
	scripts := false
drain:
	for {
		select {
		case name, ok := <-r.watcher.Events:
			if !ok {
				break drain
			}
			switch {
			case isSpecFile(name):
				changed[defKey(filepath.Base(name))] = true
			case isScriptFile(name):
				scripts = true
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				break drain
			}
			r.logger.Warn("graph watcher error", zap.Error(err))
		default:
			break drain
		}
	}
	if scripts {
		// scripts may be shared, so every tracked definition recompiles
		for name := range r.tracked {
			changed[name] = true
		}
	}

	names := make([]string, 0, len(changed))
	for name := range changed {
		if len(r.tracked[name]) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []Reload
	for _, name := range names {
		out = append(out, r.Refresh(name)...)
	}
	return out
}

// Refresh recompiles name and reinstances everything tracked under it.
func (r *Reloader) Refresh(name string) []Reload {
	key := defKey(name)
	list := r.tracked[key]
	def, err := Load(r.dir, key)
	if err != nil {
		r.logger.Warn("graph reload failed", zap.String("graph", key), zap.Error(err))
		return []Reload{{Name: key, Err: err}}
	}
	out := make([]Reload, 0, len(list))
	for _, t := range list {
		res := Reload{Name: key, Old: t.in}
		res.New, res.Mode, res.Err = Reinstance(def, t.in, t.opts)
		if res.Err != nil {
			r.logger.Warn("graph reinstance failed", zap.String("graph", key), zap.Error(res.Err))
		} else {
			r.logger.Info("graph reloaded", zap.String("graph", key), zap.Stringer("mode", res.Mode))
			t.in = res.New
		}
		out = append(out, res)
	}
	return out
}

func (r *Reloader) Close() error {
	return r.watcher.Close()
}

func defKey(name string) string {
	s := cleanDefPath(name)
	return strings.TrimSuffix(strings.TrimSuffix(s, ".yaml"), ".yml")
}

// Replace swaps a tracked instance for one the host created itself, such as
// an instance restored from a save, so later reloads carry the new one.
func (r *Reloader) Replace(old, in *motion.Instance) bool {
	for _, list := range r.tracked {
		for _, t := range list {
			if t.in == old {
				t.in = in
				return true
			}
		}
	}
	return false
}
