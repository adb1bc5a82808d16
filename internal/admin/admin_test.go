package admin

import (
	"archive/zip"
	"bytes"
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestIsAdmin(t *testing.T) {
	a := Access{AuthorizedUsers: []string{"root"}, AdminRoleName: "Bot Admin"}
	tests := []struct {
		desc string
		m    Member
		want bool
	}{
		{"authorized user", Member{UserID: "root"}, true},
		{"administrator permission", Member{UserID: "u", Permissions: PermissionAdministrator | 1}, true},
		{"bot admin role", Member{UserID: "u", RoleNames: []string{"Member", "Bot Admin"}}, true},
		{"role name is exact", Member{UserID: "u", RoleNames: []string{"bot admin"}}, false},
		{"plain member", Member{UserID: "u", Permissions: 1 << 10}, false},
	}
	for _, tt := range tests {
		if got := a.IsAdmin(tt.m); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.desc, got, tt.want)
		}
	}
}

type memArchiver struct {
	keys []string
}

func (m *memArchiver) Put(_ context.Context, key string, body io.Reader, _ string) error {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	m.keys = append(m.keys, key)
	return nil
}

func TestBackupZipsDataDir(t *testing.T) {
	data := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(data, "products.json"), []byte(`[]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "orders.jsonl"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, ".products.json.tmp-1"), []byte("x"), 0o644))

	arch := &memArchiver{}
	b := Backup{Dir: filepath.Join(t.TempDir(), "backups"), DataDir: data, Archiver: arch}
	path, err := b.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ".zip", filepath.Ext(path))
	require.Len(t, arch.keys, 1)
	assert.Equal(t, "backups/"+filepath.Base(path), arch.keys[0])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"orders.jsonl", "products.json"}, names)
}

func TestCleanOldBackups(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "autobackup_20200101_000000.zip")
	fresh := filepath.Join(dir, "backup_20990101_000000.dump")
	other := filepath.Join(dir, "notes.txt")
	for _, f := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	}
	past := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	n, err := CleanOldBackups(dir, 31*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}
