package integration

import (
	"os"
	"path/filepath"
)

// ClaudePlatform reads project MCP servers from .mcp.json.
type ClaudePlatform struct{}

// NewClaudePlatform creates the Claude Code platform.
func NewClaudePlatform() *ClaudePlatform { return &ClaudePlatform{} }

func (c *ClaudePlatform) Name() string { return "claude" }

// Detect looks for a .claude directory or an existing .mcp.json.
func (c *ClaudePlatform) Detect(projectRoot string) bool {
	return isDir(filepath.Join(projectRoot, ".claude")) || isFile(c.ConfigPath(projectRoot))
}

func (c *ClaudePlatform) ConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".mcp.json")
}

// CursorPlatform reads project MCP servers from .cursor/mcp.json.
type CursorPlatform struct{}

// NewCursorPlatform creates the Cursor platform.
func NewCursorPlatform() *CursorPlatform { return &CursorPlatform{} }

func (c *CursorPlatform) Name() string { return "cursor" }

func (c *CursorPlatform) Detect(projectRoot string) bool {
	return isDir(filepath.Join(projectRoot, ".cursor"))
}

func (c *CursorPlatform) ConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".cursor", "mcp.json")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
