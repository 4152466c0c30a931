package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sim-daas/Midnight-Blues/internal/domain"
)

const artistAddr = "mn_addr_undeployed1artist"

func fixture() Fixture {
	return Fixture{
		ArtistAddress: artistAddr,
		Artists: []domain.Artist{
			{Address: artistAddr, Name: "Midnight Blues", SecretContent: "lace.mp3"},
		},
		Songs: []domain.Song{
			{ID: "song-1", Title: "Velvet", RequiredTokens: 250, Tier: 1},
			{ID: "song-2", Title: "Lace", RequiredTokens: 500, Tier: 2},
		},
		Transfers: []domain.Transfer{
			{FanAddress: "FanA", ArtistAddress: artistAddr, Amount: 75},
		},
	}
}

func TestNew_ValidFixture(t *testing.T) {
	p, err := New(fixture())
	require.NoError(t, err)

	songs := p.List()
	require.Len(t, songs, 2)
	assert.Equal(t, "song-1", songs[0].ID)

	s, err := p.FindByID("song-2")
	require.NoError(t, err)
	assert.Equal(t, int64(500), s.RequiredTokens)

	_, err = p.FindByID("missing")
	assert.ErrorIs(t, err, ErrSongNotFound)

	assert.Equal(t, "Midnight Blues", p.Artist().Name)
}

func TestNew_RejectsBadFixtures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Fixture)
	}{
		{"no artist", func(f *Fixture) { f.ArtistAddress = "" }},
		{"duplicate id", func(f *Fixture) { f.Songs[1].ID = "song-1" }},
		{"zero price", func(f *Fixture) { f.Songs[0].RequiredTokens = 0 }},
		{"missing id", func(f *Fixture) { f.Songs[0].ID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := fixture()
			tt.mutate(&fx)
			_, err := New(fx)
			assert.Error(t, err)
		})
	}
}

func TestEmptyFixture_EncodesArrays(t *testing.T) {
	p, err := New(Fixture{ArtistAddress: artistAddr})
	require.NoError(t, err)

	for name, v := range map[string]any{
		"songs":     p.List(),
		"transfers": p.Transfers(),
	} {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(data), name)
	}
	assert.Len(t, p.Artists(), 1)
}

func TestList_IsACopy(t *testing.T) {
	p, err := New(fixture())
	require.NoError(t, err)

	songs := p.List()
	songs[0].Title = "changed"

	s, _ := p.FindByID("song-1")
	assert.Equal(t, "Velvet", s.Title)
}

func TestFindArtistAndTransfer_CaseInsensitive(t *testing.T) {
	p, err := New(fixture())
	require.NoError(t, err)

	a, err := p.FindArtist("MN_ADDR_UNDEPLOYED1ARTIST")
	require.NoError(t, err)
	assert.Equal(t, "lace.mp3", a.SecretContent)

	_, err = p.FindArtist("nobody")
	assert.ErrorIs(t, err, ErrArtistNotFound)

	tr, err := p.FindTransfer("fana", artistAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(75), tr.Amount)

	_, err = p.FindTransfer("fanb", artistAddr)
	assert.ErrorIs(t, err, ErrTransferNotFound)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := `artistAddress: addr1
artists:
  - address: addr1
    name: Midnight Blues
songs:
  - id: s1
    title: Velvet
    requiredTokens: 250
    tier: 1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	require.Len(t, p.List(), 1)
	assert.Equal(t, int64(250), p.List()[0].RequiredTokens)
}

func TestLoad_RepositoryFixture(t *testing.T) {
	p, err := Load(filepath.Join("..", "..", "fixtures", "catalog.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, p.List())
	assert.NotEmpty(t, p.Transfers())
}
