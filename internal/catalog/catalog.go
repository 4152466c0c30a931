// Package catalog serves the read-only song catalog, its artists and the recorded
// fan transfers. Everything is loaded once from a fixture and never changes.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sim-daas/Midnight-Blues/internal/domain"
)

var (
	ErrSongNotFound     = errors.New("song not found")
	ErrArtistNotFound   = errors.New("artist not found")
	ErrTransferNotFound = errors.New("transfer not found")
)

// Fixture is the on-disk layout, JSON or YAML.
type Fixture struct {
	ArtistAddress string            `json:"artistAddress" yaml:"artistAddress"`
	Artists       []domain.Artist   `json:"artists" yaml:"artists"`
	Songs         []domain.Song     `json:"songs" yaml:"songs"`
	Transfers     []domain.Transfer `json:"transfers" yaml:"transfers"`
}

type Provider struct {
	songs     []domain.Song
	byID      map[string]int
	artist    domain.Artist
	artists   []domain.Artist
	transfers []domain.Transfer
}

// Load reads the fixture at path; the extension picks the decoder.
func Load(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var fx Fixture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fx)
	default:
		err = json.Unmarshal(data, &fx)
	}
	if err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	return New(fx)
}

// New validates fx and builds a provider from it.
func New(fx Fixture) (*Provider, error) {
	if fx.ArtistAddress == "" {
		return nil, errors.New("catalog: artistAddress is required")
	}

	p := &Provider{
		songs:     make([]domain.Song, 0, len(fx.Songs)),
		byID:      make(map[string]int, len(fx.Songs)),
		artists:   append([]domain.Artist(nil), fx.Artists...),
		transfers: append([]domain.Transfer(nil), fx.Transfers...),
	}

	found := false
	for _, a := range fx.Artists {
		if strings.EqualFold(a.Address, fx.ArtistAddress) {
			p.artist = a
			found = true
			break
		}
	}
	if !found {
		p.artist = domain.Artist{Address: fx.ArtistAddress}
		p.artists = append(p.artists, p.artist)
	}

	for _, s := range fx.Songs {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: song %q has no id", s.Title)
		}
		if _, dup := p.byID[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate song id %q", s.ID)
		}
		if s.RequiredTokens <= 0 {
			return nil, fmt.Errorf("catalog: song %q must have a positive price, got %d", s.ID, s.RequiredTokens)
		}
		p.byID[s.ID] = len(p.songs)
		p.songs = append(p.songs, s)
	}

	return p, nil
}

// List returns a copy of the catalog in fixture order.
func (p *Provider) List() []domain.Song {
	out := make([]domain.Song, len(p.songs))
	copy(out, p.songs)
	return out
}

func (p *Provider) FindByID(id string) (domain.Song, error) {
	i, ok := p.byID[id]
	if !ok {
		return domain.Song{}, fmt.Errorf("%w: %s", ErrSongNotFound, id)
	}
	return p.songs[i], nil
}

// Artist is the catalog owner, the destination of every purchase transfer.
func (p *Provider) Artist() domain.Artist {
	return p.artist
}

func (p *Provider) Artists() []domain.Artist {
	out := make([]domain.Artist, len(p.artists))
	copy(out, p.artists)
	return out
}

// FindArtist matches addresses case-insensitively.
func (p *Provider) FindArtist(address string) (domain.Artist, error) {
	for _, a := range p.artists {
		if strings.EqualFold(a.Address, address) {
			return a, nil
		}
	}
	return domain.Artist{}, fmt.Errorf("%w: %s", ErrArtistNotFound, address)
}

// FindTransfer returns the first recorded transfer from fan to artist.
func (p *Provider) FindTransfer(fan, artist string) (domain.Transfer, error) {
	for _, t := range p.transfers {
		if strings.EqualFold(t.FanAddress, fan) && strings.EqualFold(t.ArtistAddress, artist) {
			return t, nil
		}
	}
	return domain.Transfer{}, ErrTransferNotFound
}

func (p *Provider) Transfers() []domain.Transfer {
	out := make([]domain.Transfer, len(p.transfers))
	copy(out, p.transfers)
	return out
}
