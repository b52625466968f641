package category

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "Pothole", want: "pothole"},
		{raw: "  fallen-tree ", want: "fallen-tree"},
		{raw: "water_leak2", want: "water_leak2"},
		{raw: "x", wantErr: true},
		{raw: "-leading", wantErr: true},
		{raw: "has space", wantErr: true},
		{raw: "émoji", wantErr: true},
		{raw: "a1234567890123456789012345678901234567890", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_RemembersOnlyUnknownCategories(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry(Defaults(), store)

	require.NoError(t, reg.Remember(ctx, "pothole"))
	require.NoError(t, reg.Remember(ctx, "fallen-tree"))

	members, err := store.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fallen-tree"}, members)

	known, err := reg.Known(ctx)
	require.NoError(t, err)
	assert.Len(t, known, len(Defaults())+1)
	last := known[len(known)-1]
	assert.Equal(t, "fallen-tree", last.ID)
	assert.True(t, last.Custom)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := "categories:\n  - id: Pothole\n    label: Pothole\n    description: Road damage\n  - id: noise\n    label: Noise\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cats, err := LoadFile(path)

	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "pothole", cats[0].ID)
	assert.Equal(t, "Road damage", cats[0].Description)
	assert.Equal(t, "noise", cats[1].ID)
}

func TestLoadFile_InvalidCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - id: \"bad tag\"\n"), 0o600))

	_, err := LoadFile(path)

	assert.ErrorIs(t, err, models.ErrInvalidCategory)
}
