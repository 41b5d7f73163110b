package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateEnv points HOME at a temp directory and clears COMPETENCE_*
// overrides so tests never read the real ~/.competence/.
func isolateEnv(t *testing.T) {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, v := range []string{
		"COMPETENCE_THRESHOLD", "COMPETENCE_LEARNER", "COMPETENCE_DOMAIN",
		"COMPETENCE_UNIT_STRENGTH", "COMPETENCE_STORE", "COMPETENCE_STORE_CACHE",
		"COMPETENCE_REDIS_ADDR", "COMPETENCE_REDIS_PASSWORD", "COMPETENCE_RATE_LIMIT",
		"COMPETENCE_LOG_LEVEL",
	} {
		t.Setenv(v, "")
	}
}

// runCmd executes a fresh command tree and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// mustRun is runCmd that fails the test on error.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

// initProject runs `init` for learner ada in a fresh directory.
func initProject(t *testing.T) string {
	t.Helper()
	isolateEnv(t)
	root := t.TempDir()
	mustRun(t, "init", "--root", root, "--learner", "ada")
	return root
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	return m
}

func TestVersionCmd(t *testing.T) {
	out := mustRun(t, "version")
	if !strings.HasPrefix(out, "competence version ") {
		t.Errorf("version output = %q", out)
	}
	m := decode(t, mustRun(t, "version", "--json"))
	if m["version"] != version {
		t.Errorf("version = %v, want %s", m["version"], version)
	}
}

func TestInitCmd(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()

	m := decode(t, mustRun(t, "init", "--root", root, "--learner", "ada", "--json"))
	if m["learner"] != "ada" || m["domain_written"] != true || m["config_written"] != true || m["new_learner"] != true {
		t.Errorf("init output = %v", m)
	}
	for _, p := range []string{"domain.yaml", "config.yaml", "state"} {
		if _, err := os.Stat(filepath.Join(root, ".competence", p)); err != nil {
			t.Errorf("missing .competence/%s: %v", p, err)
		}
	}

	// A second init keeps everything.
	m = decode(t, mustRun(t, "init", "--root", root, "--json"))
	if m["learner"] != "ada" || m["domain_written"] != false || m["config_written"] != false || m["new_learner"] != false {
		t.Errorf("second init output = %v", m)
	}
}

func TestInitCmd_GeneratesLearner(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()

	m := decode(t, mustRun(t, "init", "--root", root, "--json"))
	learner, _ := m["learner"].(string)
	if len(learner) != 36 {
		t.Errorf("generated learner = %q, want a uuid", learner)
	}
	data, err := os.ReadFile(projectConfigPath(root))
	if err != nil {
		t.Fatalf("reading project config: %v", err)
	}
	if !strings.Contains(string(data), learner) {
		t.Errorf("project config does not name %s:\n%s", learner, data)
	}
}

func TestValidateCmd(t *testing.T) {
	root := initProject(t)

	m := decode(t, mustRun(t, "validate", "--root", root, "--json"))
	if m["valid"] != true || m["competences"] != float64(10) || m["prerequisites"] != float64(9) || m["units"] != float64(8) {
		t.Errorf("validate output = %v", m)
	}

	bad := filepath.Join(root, "bad.yaml")
	if err := os.WriteFile(bad, []byte("name: broken\ncompetences: []\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "validate", "--root", root, "--domain", bad); err == nil {
		t.Error("expected validation error for an empty domain")
	}
}

func TestMasteryCmd(t *testing.T) {
	root := initProject(t)

	m := decode(t, mustRun(t, "mastery", "--root", root, "--json"))
	if m["learner"] != "ada" || m["total"] != float64(10) || m["mastered_count"] != float64(0) {
		t.Errorf("mastery output = %v", m)
	}

	out := mustRun(t, "mastery", "--root", root)
	if !strings.Contains(out, "0 of 10 competences mastered") || !strings.Contains(out, "Count to twenty") {
		t.Errorf("mastery text = %q", out)
	}
}

func TestMasteryCmd_NoLearner(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	if _, err := runCmd(t, "init", "--root", root, "--learner", "ada"); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(projectConfigPath(root)); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "mastery", "--root", root); err == nil || !strings.Contains(err.Error(), "learner") {
		t.Errorf("expected a missing learner error, got %v", err)
	}
}

func TestResultCmd(t *testing.T) {
	root := initProject(t)

	m := decode(t, mustRun(t, "result", "counting-game", "success", "--root", root, "--json"))
	crossed, _ := m["crossed"].([]any)
	if m["applied"] != float64(1) || len(crossed) != 1 || crossed[0] != "C1" {
		t.Errorf("result output = %v", m)
	}

	// Persisted for the next invocation.
	m = decode(t, mustRun(t, "mastery", "--root", root, "--mastered", "--json"))
	if m["mastered_count"] != float64(1) {
		t.Errorf("mastered_count = %v, want 1", m["mastered_count"])
	}

	if _, err := runCmd(t, "result", "no-such-unit", "success", "--root", root); err == nil {
		t.Error("expected error for unknown unit")
	}
	if _, err := runCmd(t, "result", "counting-game", "maybe", "--root", root); err == nil {
		t.Error("expected error for unknown outcome")
	}
}

func TestEvidenceCmd(t *testing.T) {
	root := initProject(t)

	out := mustRun(t, "evidence", "C1", "up", "--root", root)
	if !strings.Contains(out, "Applied 1 evidence item(s)") || !strings.Contains(out, "C1 mastered") {
		t.Errorf("evidence output = %q", out)
	}

	m := decode(t, mustRun(t, "evidence", "--item", "C2:up:low", "--item", "C99:down", "--root", root, "--json"))
	rejected, _ := m["rejected"].([]any)
	if m["applied"] != float64(1) || len(rejected) != 1 {
		t.Errorf("evidence output = %v", m)
	}

	for _, args := range [][]string{
		{"evidence", "--root", root},
		{"evidence", "C1", "--root", root},
		{"evidence", "C1", "sideways", "--root", root},
		{"evidence", "C1", "up", "--strength", "extreme", "--root", root},
	} {
		if _, err := runCmd(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestNextCmd(t *testing.T) {
	root := initProject(t)

	m := decode(t, mustRun(t, "next", "--root", root, "--json", "--explain"))
	unit, _ := m["unit"].(map[string]any)
	if m["exhausted"] != false || unit["id"] != "counting-game" || m["plays"] != float64(1) {
		t.Errorf("next output = %v", m)
	}
	if cands, _ := m["candidates"].([]any); len(cands) == 0 {
		t.Error("explain should list candidates")
	}

	out := mustRun(t, "next", "--root", root)
	if !strings.Contains(out, "Next unit: digit-match") {
		t.Errorf("second next = %q", out)
	}
}

func TestResetCmd(t *testing.T) {
	root := initProject(t)
	initial := mustRun(t, "mastery", "--root", root, "--json")

	mustRun(t, "result", "bigger-pile", "success", "--root", root)
	if _, err := runCmd(t, "reset", "--root", root); err == nil {
		t.Fatal("reset without --yes should fail")
	}
	mustRun(t, "reset", "--yes", "--root", root)

	if got := mustRun(t, "mastery", "--root", root, "--json"); got != initial {
		t.Errorf("mastery after reset differs from initial:\n%s\nwant\n%s", got, initial)
	}
}

func TestGraphCmd(t *testing.T) {
	root := initProject(t)

	out := mustRun(t, "graph", "--root", root)
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("dot output = %.40q", out)
	}

	m := decode(t, mustRun(t, "graph", "--root", root, "--format", "json"))
	if m["node_count"] != float64(10) || m["edge_count"] != float64(9) || m["domain"] != "arithmetic" {
		t.Errorf("json graph = %v", m)
	}

	page := filepath.Join(root, "graph.html")
	out = mustRun(t, "graph", "--root", root, "--format", "html", "-o", page, "--no-open")
	if !strings.Contains(out, page) {
		t.Errorf("html output = %q", out)
	}
	if data, err := os.ReadFile(page); err != nil || !strings.Contains(string(data), "<html") {
		t.Errorf("html file: %v", err)
	}

	if _, err := runCmd(t, "graph", "--root", root, "--format", "svg"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestExportImportCmd(t *testing.T) {
	root := initProject(t)
	mustRun(t, "result", "counting-game", "success", "--root", root)
	after := mustRun(t, "mastery", "--root", root, "--json")

	file := filepath.Join(root, "progress.json.gz")
	m := decode(t, mustRun(t, "export", file, "--root", root, "--json"))
	if m["state_count"] != float64(1) {
		t.Errorf("export output = %v", m)
	}
	if out := mustRun(t, "export", "verify", file); !strings.Contains(out, "OK") {
		t.Errorf("verify output = %q", out)
	}

	mustRun(t, "reset", "--yes", "--root", root)

	m = decode(t, mustRun(t, "import", file, "--root", root, "--json"))
	if m["restored"] != float64(0) || m["skipped"] != float64(1) {
		t.Errorf("merge import = %v", m)
	}
	m = decode(t, mustRun(t, "import", file, "--root", root, "--mode", "replace", "--json"))
	if m["restored"] != float64(1) {
		t.Errorf("replace import = %v", m)
	}
	if got := mustRun(t, "mastery", "--root", root, "--json"); got != after {
		t.Errorf("mastery after import:\n%s\nwant\n%s", got, after)
	}

	if _, err := runCmd(t, "import", file, "--root", root, "--mode", "upsert"); err == nil {
		t.Error("expected error for invalid mode")
	}
}

func TestExportImportCmd_RejectsOutsidePaths(t *testing.T) {
	root := initProject(t)
	outside := filepath.Join(t.TempDir(), "progress.json.gz")

	_, err := runCmd(t, "export", outside, "--root", root)
	if err == nil || !strings.Contains(err.Error(), "outside allowed") {
		t.Errorf("export outside root: err = %v", err)
	}
	if fileExists(outside) {
		t.Error("rejected export should not write a file")
	}
	if _, err := runCmd(t, "import", outside, "--root", root); err == nil {
		t.Error("expected import outside root to be rejected")
	}
}

func TestExportCmd_Retention(t *testing.T) {
	root := initProject(t)
	dir := filepath.Join(root, "backups")
	cfgPath := filepath.Join(root, "custom.yaml")
	cfg := "session:\n  learner: ada\nbackup:\n  dir: " + dir + "\n  max_count: 1\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}

	m := decode(t, mustRun(t, "export", "--root", root, "--config", cfgPath, "--json"))
	first, _ := m["path"].(string)
	if filepath.Dir(first) != dir {
		t.Fatalf("backup path = %s, want it in %s", first, dir)
	}

	// Backups are named by the second; make the next one sort later.
	older := filepath.Join(dir, "competence-backup-20000101-000000.json.gz")
	if err := os.Rename(first, older); err != nil {
		t.Fatal(err)
	}
	m = decode(t, mustRun(t, "export", "--root", root, "--config", cfgPath, "--json"))
	pruned, _ := m["pruned"].([]any)
	if len(pruned) != 1 || pruned[0] != older {
		t.Errorf("pruned = %v, want [%s]", pruned, older)
	}

	m = decode(t, mustRun(t, "export", "list", "--root", root, "--config", cfgPath, "--json"))
	if backups, _ := m["backups"].([]any); len(backups) != 1 {
		t.Errorf("backups = %v, want 1", m["backups"])
	}
}

func TestStoreMigrateCmd(t *testing.T) {
	root := initProject(t)
	mustRun(t, "result", "counting-game", "success", "--root", root)
	want := mustRun(t, "mastery", "--root", root, "--json")

	m := decode(t, mustRun(t, "store", "migrate", "--to", "sqlite", "--root", root, "--json"))
	if m["from"] != "file" || m["copied"] != float64(1) || m["skipped"] != float64(0) {
		t.Errorf("migrate output = %v", m)
	}
	m = decode(t, mustRun(t, "store", "migrate", "--to", "sqlite", "--root", root, "--json"))
	if m["copied"] != float64(0) || m["skipped"] != float64(1) {
		t.Errorf("second migrate output = %v", m)
	}

	t.Setenv("COMPETENCE_STORE", "sqlite")
	if got := mustRun(t, "mastery", "--root", root, "--json"); got != want {
		t.Errorf("mastery from sqlite:\n%s\nwant\n%s", got, want)
	}
	m = decode(t, mustRun(t, "store", "keys", "--root", root, "--json"))
	if keys, _ := m["keys"].([]any); len(keys) != 1 || !strings.HasSuffix(keys[0].(string), "/ada") {
		t.Errorf("keys = %v", m["keys"])
	}

	for _, args := range [][]string{
		{"store", "migrate", "--root", root},
		{"store", "migrate", "--to", "sqlite", "--root", root},
		{"store", "migrate", "--to", "memory", "--root", root, "--from", "file"},
	} {
		if _, err := runCmd(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestConfigShowCmd(t *testing.T) {
	root := initProject(t)
	t.Setenv("COMPETENCE_REDIS_PASSWORD", "hunter2")

	out := mustRun(t, "config", "show", "--root", root, "--json")
	if strings.Contains(out, "hunter2") {
		t.Error("config show leaked the redis password")
	}
	m := decode(t, out)
	session, _ := m["session"].(map[string]any)
	if session["learner"] != "ada" {
		t.Errorf("session = %v", session)
	}
	mastery, _ := m["mastery"].(map[string]any)
	if mastery["threshold"] != 0.7 {
		t.Errorf("mastery = %v", mastery)
	}

	out = mustRun(t, "config", "show", "--root", root)
	if !strings.Contains(out, "threshold: 0.7") || strings.Contains(out, "hunter2") {
		t.Errorf("yaml output = %q", out)
	}

	t.Setenv("COMPETENCE_THRESHOLD", "1.5")
	if _, err := runCmd(t, "config", "show", "--root", root); err == nil {
		t.Error("expected validation error for threshold 1.5")
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := []string{
		"version", "init", "validate", "mastery", "evidence", "result", "next",
		"reset", "graph", "export", "import", "store", "config", "mcp-server",
	}
	rootCmd := newRootCmd()
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
	if rootCmd.PersistentFlags().Lookup("learner") == nil || rootCmd.PersistentFlags().Lookup("domain") == nil {
		t.Error("missing global flags")
	}
}

func TestMCPInstallCmd(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()

	if _, err := runCmd(t, "mcp-server", "install", "--root", root); err == nil {
		t.Error("expected error when no tool is detected")
	}
	if _, err := runCmd(t, "mcp-server", "install", "--root", root, "--platform", "vim"); err == nil {
		t.Error("expected error for unknown platform")
	}

	m := decode(t, mustRun(t, "mcp-server", "install", "--root", root, "--platform", "claude", "--learner", "ada", "--json"))
	results, _ := m["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %v", m)
	}
	if r := results[0].(map[string]any); r["platform"] != "claude" || r["created"] != true {
		t.Errorf("result = %v", r)
	}
	data, err := os.ReadFile(filepath.Join(root, ".mcp.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"--learner"`) {
		t.Errorf(".mcp.json = %s", data)
	}

	// .mcp.json now exists, so claude is detected without --platform.
	if out := mustRun(t, "mcp-server", "install", "--root", root, "--learner", "ada"); !strings.Contains(out, "already configured") {
		t.Errorf("second install output = %q", out)
	}

	m = decode(t, mustRun(t, "mcp-server", "uninstall", "--root", root, "--json"))
	if removed, _ := m["removed"].([]any); len(removed) != 1 || removed[0] != "claude" {
		t.Errorf("uninstall = %v", m)
	}
}
