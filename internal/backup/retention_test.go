package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func infos(ages ...time.Duration) []BackupInfo {
	now := time.Now()
	out := make([]BackupInfo, len(ages))
	for i, a := range ages {
		out[i] = BackupInfo{Path: filepath.Join("b", string(rune('a'+i))), CreatedAt: now.Add(-a)}
	}
	return out
}

func TestCountPolicy(t *testing.T) {
	backups := infos(time.Hour, 2*time.Hour, 3*time.Hour)
	if got := (&CountPolicy{MaxCount: 2}).Apply(backups); len(got) != 2 || got[0].Path != backups[0].Path {
		t.Errorf("kept %+v", got)
	}
	if got := (&CountPolicy{MaxCount: 5}).Apply(backups); len(got) != 3 {
		t.Errorf("kept %d, want 3", len(got))
	}
}

func TestAgePolicy(t *testing.T) {
	backups := infos(time.Hour, 48*time.Hour, 10*24*time.Hour)
	got := (&AgePolicy{MaxAge: 7 * 24 * time.Hour}).Apply(backups)
	if len(got) != 2 {
		t.Errorf("kept %d, want 2", len(got))
	}
}

func TestAnyPolicy(t *testing.T) {
	backups := infos(time.Hour, 48*time.Hour, 10*24*time.Hour, 20*24*time.Hour)
	p := AnyPolicy{&CountPolicy{MaxCount: 1}, &AgePolicy{MaxAge: 3 * 24 * time.Hour}}
	got := p.Apply(backups)
	if len(got) != 2 || got[0].Path != backups[0].Path || got[1].Path != backups[1].Path {
		t.Errorf("kept %+v", got)
	}
}

func TestListBackupsAndApplyRetention(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"competence-backup-20260101-100000.json.gz",
		"competence-backup-20260102-100000.json.gz",
		"competence-backup-20260103-100000.json",
		"notes.txt",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("{}\n"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	list, err := ListBackups(dir)
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("listed %d backups, want 3", len(list))
	}
	if filepath.Base(list[0].Path) != names[2] {
		t.Errorf("newest = %s, want %s", filepath.Base(list[0].Path), names[2])
	}

	deleted, err := ApplyRetention(dir, &CountPolicy{MaxCount: 1})
	if err != nil {
		t.Fatalf("ApplyRetention: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted %d, want 2", len(deleted))
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("non-backup file was removed")
	}
}

func TestListBackups_MissingDir(t *testing.T) {
	list, err := ListBackups(filepath.Join(t.TempDir(), "nope"))
	if err != nil || list != nil {
		t.Errorf("ListBackups = %v, %v", list, err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"", 0, true},
		{"xd", 0, true},
		{"5y", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, %v", tt.in, got, err)
		}
	}
}
