// Package integration registers the competence MCP server with AI coding
// tools. Each supported tool keeps an "mcpServers" map in a JSON file in
// the project; registering merges one entry into it and leaves every other
// server untouched.
package integration

import (
	"fmt"
	"sync"
)

// ServerName is the key of the competence entry in mcpServers.
const ServerName = "competence"

// ServerEntry is the launch command a tool runs to start the MCP server.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// DefaultEntry launches `competence mcp-server` for learner, or for the
// configured learner when learner is empty.
func DefaultEntry(binary, learner string) ServerEntry {
	e := ServerEntry{Command: binary, Args: []string{"mcp-server"}}
	if learner != "" {
		e.Args = append(e.Args, "--learner", learner)
	}
	return e
}

// Platform is one AI tool that can launch MCP servers.
type Platform interface {
	// Name is the short name used on the command line.
	Name() string

	// Detect reports whether the tool is set up in projectRoot.
	Detect(projectRoot string) bool

	// ConfigPath is the tool's MCP config file under projectRoot.
	ConfigPath(projectRoot string) string
}

// Registry holds the supported platforms.
type Registry struct {
	mu        sync.RWMutex
	platforms []Platform
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a platform.
func (r *Registry) Register(p Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.platforms = append(r.platforms, p)
}

// All returns every registered platform in registration order.
func (r *Registry) All() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Platform, len(r.platforms))
	copy(out, r.platforms)
	return out
}

// Get returns the platform called name, or nil.
func (r *Registry) Get(name string) Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.platforms {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Names lists the registered platform names.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name()
	}
	return names
}

// Detect returns the platforms set up in projectRoot.
func (r *Registry) Detect(projectRoot string) []Platform {
	var out []Platform
	for _, p := range r.All() {
		if p.Detect(projectRoot) {
			out = append(out, p)
		}
	}
	return out
}

// Result reports what Install did for one platform.
type Result struct {
	Platform   string `json:"platform"`
	ConfigPath string `json:"config_path"`
	Created    bool   `json:"created"`   // the config file did not exist
	Unchanged  bool   `json:"unchanged"` // an identical entry was already there
	Error      string `json:"error,omitempty"`
}

// Install merges entry into p's config under ServerName. An existing
// competence entry is replaced; other servers are kept.
func Install(p Platform, projectRoot string, entry ServerEntry) Result {
	path := p.ConfigPath(projectRoot)
	res := Result{Platform: p.Name(), ConfigPath: path}

	cfg, err := readConfig(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Created = cfg == nil

	updated, changed, err := mergeServer(cfg, ServerName, entry)
	if err != nil {
		res.Error = fmt.Sprintf("%s: %v", path, err)
		return res
	}
	if !changed {
		res.Unchanged = true
		return res
	}
	if err := writeConfig(path, updated); err != nil {
		res.Error = err.Error()
	}
	return res
}

// Installed reports whether p's config already has a competence entry.
func Installed(p Platform, projectRoot string) (bool, error) {
	cfg, err := readConfig(p.ConfigPath(projectRoot))
	if err != nil || cfg == nil {
		return false, err
	}
	servers, _ := cfg["mcpServers"].(map[string]any)
	_, ok := servers[ServerName]
	return ok, nil
}

// Uninstall removes the competence entry from p's config. It reports
// whether an entry was removed.
func Uninstall(p Platform, projectRoot string) (bool, error) {
	path := p.ConfigPath(projectRoot)
	cfg, err := readConfig(path)
	if err != nil || cfg == nil {
		return false, err
	}
	servers, _ := cfg["mcpServers"].(map[string]any)
	if _, ok := servers[ServerName]; !ok {
		return false, nil
	}
	delete(servers, ServerName)
	return true, writeConfig(path, cfg)
}

// DefaultRegistry holds every built-in platform.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(NewClaudePlatform())
	DefaultRegistry.Register(NewCursorPlatform())
}
