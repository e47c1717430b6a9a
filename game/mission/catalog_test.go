package mission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeMissions(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "missions.json"), []byte(content), 0o644))
}

const catalogJSON = `[
	// keep this one first
	{"event": "player_kill", "target": "enemy", "amount": 5, "phrase": "kill_five", "rewardPhrase": "r1", "rewardCommands": ["a"]},
	{"event": "PLAYER_KILL", "target": "enemy", "amount": 10, "phrase": "kill_ten", "rewardPhrase": "r2", "rewardCommands": ["b"]},
	/* vip only */
	{"event": "bomb_plant", "target": "site", "amount": 2, "phrase": "plant_two", "rewardPhrase": "r3", "rewardCommands": ["c"], "flag": "vip.missions"}
]`

func TestCatalog_LoadFromDir(t *testing.T) {
	dir := t.TempDir()
	writeMissions(t, dir, catalogJSON)

	c := NewCatalog(zap.NewNop())
	c.LoadFromDir(dir)

	require.Equal(t, 3, c.Count())
	all := c.All()
	assert.Equal(t, "kill_five", all[0].Phrase)
	assert.Equal(t, "plant_two", all[2].Phrase)
	require.NotNil(t, all[2].Flag)
	assert.Equal(t, "vip.missions", *all[2].Flag)
}

func TestCatalog_SeedsFromBundledDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "resources"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "resources", "missions.json"), []byte(catalogJSON), 0o644))

	c := NewCatalog(zap.NewNop())
	c.LoadFromDir(dir)

	assert.Equal(t, 3, c.Count())
	_, err := os.Stat(filepath.Join(dir, "missions.json"))
	assert.NoError(t, err, "seeded copy should exist for later hand edits")
}

func TestCatalog_ReloadKeepsOldOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeMissions(t, dir, catalogJSON)

	c := NewCatalog(zap.NewNop())
	c.LoadFromDir(dir)
	require.Equal(t, 3, c.Count())

	writeMissions(t, dir, `{"not": "an array"`)
	c.LoadFromDir(dir)
	assert.Equal(t, 3, c.Count(), "parse failure keeps previous definitions")

	writeMissions(t, dir, `[]`)
	c.LoadFromDir(dir)
	assert.Equal(t, 3, c.Count(), "empty file keeps previous definitions")
}

func TestCatalog_LoadMissingFileNoDefault(t *testing.T) {
	c := NewCatalog(zap.NewNop())
	c.LoadFromDir(t.TempDir())
	assert.Zero(t, c.Count())
}

func TestCatalog_ByEvent(t *testing.T) {
	dir := t.TempDir()
	writeMissions(t, dir, catalogJSON)
	c := NewCatalog(zap.NewNop())
	c.LoadFromDir(dir)

	defs := c.ByEvent("Player_Kill")
	require.Len(t, defs, 2, "event tags match case-insensitively")
	assert.Equal(t, "kill_five", defs[0].Phrase)
	assert.Equal(t, "kill_ten", defs[1].Phrase)

	assert.Empty(t, c.ByEvent("round_end"))
}

func TestCatalog_AvailableFor(t *testing.T) {
	dir := t.TempDir()
	writeMissions(t, dir, catalogJSON)
	c := NewCatalog(zap.NewNop())
	c.LoadFromDir(dir)

	everyone := c.AvailableFor(func(string) bool { return false })
	require.Len(t, everyone, 2)

	var asked []string
	vip := c.AvailableFor(func(flag string) bool {
		asked = append(asked, flag)
		return flag == "vip.missions"
	})
	assert.Len(t, vip, 3)
	assert.Equal(t, []string{"vip.missions"}, asked, "only flagged definitions consult permissions")
}

func TestStripComments(t *testing.T) {
	in := []byte(`{
	// a comment with "quotes"
	"url": "http://example.com/path", /* inline */ "n": 1,
	"s": "a \"quoted // not a comment\" value"
}`)
	out := stripComments(in)
	assert.JSONEq(t, `{"url": "http://example.com/path", "n": 1, "s": "a \"quoted // not a comment\" value"}`, string(out))
}
