package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	nursery "github.com/unowned-ai/nursery/pkg"
	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"
)

var fixedNow = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	// Day boundaries and "HH:MM" flags are read in the local zone.
	time.Local = time.UTC
	os.Exit(m.Run())
}

func runCLI(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(func() time.Time { return fixedNow })
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dbPath, args...)
	require.NoError(t, err, "nursery %v", args)
	return out
}

func testDBPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "nursery.db")
}

func TestVersion(t *testing.T) {
	out := mustRun(t, testDBPath(t), "version")
	assert.Equal(t, nursery.Version+"\n", out)
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, testDBPath(t), "--format", "xml", "children", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestChildrenCommands(t *testing.T) {
	dbPath := testDBPath(t)

	out := mustRun(t, dbPath, "--format", "json", "children", "add", "--name", "Mina", "--birth-date", "2023-11-01")
	var child diary.Child
	require.NoError(t, json.Unmarshal([]byte(out), &child))
	assert.Equal(t, int64(1), child.ID)
	assert.Equal(t, "2023-11-01", child.BirthDate.String())

	out = mustRun(t, dbPath, "children", "list")
	assert.Contains(t, out, "Mina")
	assert.Contains(t, out, "2023-11-01")

	out = mustRun(t, dbPath, "children", "get", "1")
	assert.Contains(t, out, "Age:        6 months")

	_, err := runCLI(t, dbPath, "children", "get", "7")
	assert.ErrorIs(t, err, diary.ErrChildNotFound)

	_, err = runCLI(t, dbPath, "children", "add", "--name", "Later", "--birth-date", "2030-01-01")
	assert.ErrorIs(t, err, diary.ErrInvalidRecord)
}

func seedDay(t *testing.T, dbPath string) {
	t.Helper()
	mustRun(t, dbPath, "children", "add", "--name", "Mina", "--birth-date", "2023-11-01")
	mustRun(t, dbPath, "log", "feeding", "--child", "1", "--type", "formula", "--amount", "120", "--at", "07:30")
	mustRun(t, dbPath, "log", "feeding", "--child", "1", "--type", "breastLeft", "--duration", "10m", "--at", "11:00")
	mustRun(t, dbPath, "log", "diaper", "--child", "1", "--type", "wet", "--at", "09:00")
	mustRun(t, dbPath, "log", "sleep", "--child", "1", "--at", "2024-05-01 13:00", "--end", "2024-05-01 14:30")
	mustRun(t, dbPath, "log", "mood", "--child", "1", "--mood", "happy", "--at", "15:00")
}

func TestLogAndSummary(t *testing.T) {
	dbPath := testDBPath(t)
	seedDay(t, dbPath)

	out := mustRun(t, dbPath, "--format", "json", "summary", "--child", "1", "--day", "2024-05-01")
	var sum summaryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, "2024-05-01", sum.Day)
	assert.Equal(t, 2, sum.Feedings)
	assert.Equal(t, 120.0, sum.FeedingVolumeML)
	assert.Equal(t, 10, sum.BreastMinutes)
	assert.Equal(t, 90, sum.SleepMinutes)
	assert.Equal(t, 1, sum.Diapers[diary.DiaperWet])
	assert.Equal(t, diary.MoodHappy, sum.DominantMood)
	assert.Nil(t, sum.NextMilestone)

	out = mustRun(t, dbPath, "summary", "--child", "1", "--day", "2024-05-01")
	assert.Contains(t, out, "Feedings:      2 (120.0 ml) (breast 10 min)")
	assert.Contains(t, out, "Sleep:         1h 30m")
	assert.Contains(t, out, "Diapers:       wet 1")
}

func TestLogValidation(t *testing.T) {
	dbPath := testDBPath(t)
	mustRun(t, dbPath, "children", "add", "--name", "Mina", "--birth-date", "2023-11-01")

	_, err := runCLI(t, dbPath, "log", "feeding", "--child", "1", "--type", "juice")
	assert.ErrorIs(t, err, diary.ErrInvalidRecord)

	_, err = runCLI(t, dbPath, "log", "feeding", "--child", "1", "--type", "formula")
	assert.ErrorIs(t, err, diary.ErrInvalidRecord, "formula without an amount")

	_, err = runCLI(t, dbPath, "log", "diaper", "--type", "wet")
	assert.Error(t, err, "--child is required")

	_, err = runCLI(t, dbPath, "log", "diaper", "--child", "1", "--type", "wet", "--at", "yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid time")
}

func TestSleepWake(t *testing.T) {
	dbPath := testDBPath(t)
	mustRun(t, dbPath, "children", "add", "--name", "Mina", "--birth-date", "2023-11-01")

	_, err := runCLI(t, dbPath, "log", "sleep", "--child", "1", "--wake")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not asleep")

	mustRun(t, dbPath, "log", "sleep", "--child", "1", "--at", "18:00")
	out := mustRun(t, dbPath, "--format", "json", "log", "sleep", "--child", "1", "--wake", "--at", "19:15")
	var s diary.SleepRecord
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	require.NotNil(t, s.EndTime)
	assert.Equal(t, 75*time.Minute, s.EndTime.Sub(s.StartTime))
}

func TestMilestoneCommands(t *testing.T) {
	dbPath := testDBPath(t)
	mustRun(t, dbPath, "children", "add", "--name", "Mina", "--birth-date", "2023-11-01")
	mustRun(t, dbPath, "log", "milestone", "--child", "1", "--type", "motor", "--title", "sits", "--min-age", "5", "--max-age", "7")
	mustRun(t, dbPath, "log", "milestone", "--child", "1", "--type", "motor", "--title", "crawls", "--min-age", "7", "--max-age", "10")

	out := mustRun(t, dbPath, "summary", "--child", "1")
	assert.Contains(t, out, "Next milestone: sits (5-7 months)")

	mustRun(t, dbPath, "log", "milestone", "--child", "1", "--achieve", "1")
	out = mustRun(t, dbPath, "summary", "--child", "1")
	assert.Contains(t, out, "Next milestone: crawls (7-10 months)")
}

func TestRecordsCommands(t *testing.T) {
	dbPath := testDBPath(t)
	seedDay(t, dbPath)

	out := mustRun(t, dbPath, "--format", "json", "records", "range", "feeding", "childTimestampIndex",
		"--child", "1", "--start", "2024-05-01T07:30:00Z", "--end", "2024-05-01T10:00:00Z")
	var recs []records.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "formula", recs[0]["type"])

	out = mustRun(t, dbPath, "--format", "json", "records", "query", "feeding", "typeIndex", "breastLeft")
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs, 1)

	out = mustRun(t, dbPath, "records", "get", "diaper", "1")
	assert.Contains(t, out, `"type":"wet"`)

	mustRun(t, dbPath, "records", "delete", "diaper", "1")
	mustRun(t, dbPath, "records", "delete", "diaper", "1")
	_, err := runCLI(t, dbPath, "records", "get", "diaper", "1")
	assert.Error(t, err)

	_, err = runCLI(t, dbPath, "records", "list", "toys")
	assert.ErrorIs(t, err, records.ErrQuery)
}

func TestSettingsCommands(t *testing.T) {
	dbPath := testDBPath(t)
	mustRun(t, dbPath, "children", "add", "--name", "Mina", "--birth-date", "2023-11-01")

	_, err := runCLI(t, dbPath, "summary")
	require.Error(t, err, "no active child yet")

	out := mustRun(t, dbPath, "--format", "yaml", "settings", "set", "--dark-mode", "--active-child", "1")
	assert.Contains(t, out, "darkMode: true")
	assert.Contains(t, out, "activeChildId: 1")

	out = mustRun(t, dbPath, "settings", "get")
	assert.Contains(t, out, "Active child:   1")

	mustRun(t, dbPath, "summary")

	_, err = runCLI(t, dbPath, "settings", "set", "--active-child", "9")
	assert.ErrorIs(t, err, diary.ErrChildNotFound)
}

func TestBackupResetRestore(t *testing.T) {
	dbPath := testDBPath(t)
	seedDay(t, dbPath)
	backupPath := filepath.Join(t.TempDir(), "backup.json")

	mustRun(t, dbPath, "backup", "export", "--out", backupPath)
	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"appIdentifier": "nursery"`)

	_, err = runCLI(t, dbPath, "db", "reset")
	require.Error(t, err, "reset needs --yes")

	mustRun(t, dbPath, "db", "reset", "--yes")
	out := mustRun(t, dbPath, "children", "list")
	assert.Contains(t, out, "No children found.")

	mustRun(t, dbPath, "backup", "import", backupPath)
	out = mustRun(t, dbPath, "--format", "json", "records", "list", "feeding")
	var recs []records.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs, 2)

	invalid := filepath.Join(t.TempDir(), "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{}`), 0o644))
	_, err = runCLI(t, dbPath, "backup", "import", invalid)
	assert.ErrorIs(t, err, records.ErrInvalidBackup)
}

func TestBackupExportDefaultName(t *testing.T) {
	dbPath := testDBPath(t)
	t.Chdir(t.TempDir())

	mustRun(t, dbPath, "backup", "export")
	_, err := os.Stat("nursery-backup-2024-05-01.json")
	assert.NoError(t, err)
}

func TestDeleteChildCascade(t *testing.T) {
	dbPath := testDBPath(t)
	seedDay(t, dbPath)
	mustRun(t, dbPath, "settings", "set", "--active-child", "1")

	out := mustRun(t, dbPath, "--format", "json", "children", "delete", "1", "--cascade")
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "cascade", result["policy"])
	assert.Equal(t, float64(5), result["recordsDeleted"])

	out = mustRun(t, dbPath, "settings", "get")
	assert.Contains(t, out, "Active child:   -")
}

func TestDBUpgrade(t *testing.T) {
	dbPath := testDBPath(t)
	mustRun(t, dbPath, "db", "upgrade")
	mustRun(t, dbPath, "db", "upgrade")
	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestParseWhen(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", fixedNow},
		{"2024-04-30T22:15:00Z", time.Date(2024, 4, 30, 22, 15, 0, 0, time.UTC)},
		{"2024-04-30 06:05", time.Date(2024, 4, 30, 6, 5, 0, 0, time.UTC)},
		{"07:30", time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseWhen(tt.in, fixedNow, time.UTC)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "parseWhen(%q) = %v, want %v", tt.in, got, tt.want)
	}

	_, err := parseWhen("noon", fixedNow, time.UTC)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"rice", "pear"}, splitList(" rice, ,pear ,"))
	assert.Nil(t, splitList(""))
}
