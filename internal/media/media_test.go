package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amaumene/torboxarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestExtractFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		title   string
		season  *int
		episode *int
	}{
		{"dotted title", "Magic. Series S1E2.mp4", "Magic Series", intp(1), intp(2)},
		{"bare season rejected", "Magic Series s04.mp4", "Magic Series s04", nil, nil},
		{"spaced marker", "Some Show S01 E05 1080p.mkv", "Some Show", intp(1), intp(5)},
		{"dotted marker", "Some_Show_S02.E10.mkv", "Some Show", intp(2), intp(10)},
		{"long form", "Some Show Season 01 Episode 02.avi", "Some Show", intp(1), intp(2)},
		{"dash separated", "Some Show - S03E04 - Pilot.mkv", "Some Show", intp(3), intp(4)},
		{"no marker", "Great.Movie.2020.1080p.mkv", "Great Movie 2020 1080p", nil, nil},
		{"colon removed", "Star Wars: Andor S01E01.mkv", "Star Wars Andor", intp(1), intp(1)},
		{"deepest segment wins", "Pack.S01E01-E10/Sub/Show.S01E07.mkv", "Show", intp(1), intp(7)},
		{"marker only in parent", "Show.S02E03.Release/video.mkv", "Show", intp(2), intp(3)},
		{"windows separators", `Show.S01E01\Show.S01E09.mkv`, "Show", intp(1), intp(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := ExtractFromFilename(tt.input)
			assert.Equal(t, tt.title, md.Title)
			assert.Equal(t, tt.season, md.Season)
			assert.Equal(t, tt.episode, md.Episode)
			assert.Empty(t, md.ExternalID)
		})
	}
}

func TestExtractWithSeasonOnlyPolicy(t *testing.T) {
	md := ExtractWithPolicy("Magic Series s04.mp4", AllowSeasonOnly)
	assert.Equal(t, "Magic Series", md.Title)
	assert.Equal(t, intp(4), md.Season)
	assert.Nil(t, md.Episode)

	md = ExtractWithPolicy("Magic Series s04.mp4", RequireEpisodeWithSeason)
	assert.Nil(t, md.Season)
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "a b c", CleanTitle("  a__b..c/ \\ "))
	assert.Equal(t, "Title Sub", CleanTitle("Title: Sub"))
	assert.Equal(t, "", CleanTitle("..."))
}

func TestExtractFromSearch(t *testing.T) {
	t.Run("query fills season and episode", func(t *testing.T) {
		record := &models.SearchResult{Query: "tt0000/s1/E2", Title: "Magic test"}
		md := ExtractFromSearch(record, Metadata{})
		assert.Equal(t, "Magic test", md.Title)
		assert.Equal(t, intp(1), md.Season)
		assert.Equal(t, intp(2), md.Episode)
		assert.Equal(t, "tt0000", md.ExternalID)
	})

	t.Run("filename values are kept", func(t *testing.T) {
		record := &models.SearchResult{Query: "tt1/s1/e1", Title: "Show", Season: intp(1), Episodes: []int{1}}
		md := ExtractFromSearch(record, ExtractFromFilename("show.S01E07.mkv"))
		assert.Equal(t, "Show", md.Title)
		assert.Equal(t, intp(1), md.Season)
		assert.Equal(t, intp(7), md.Episode)
	})

	t.Run("record fields fill the gaps", func(t *testing.T) {
		record := &models.SearchResult{Query: "tt2", Title: "Other", Season: intp(3), Episodes: []int{4}}
		md := ExtractFromSearch(record, ExtractFromFilename("video.mkv"))
		assert.Equal(t, "Other", md.Title)
		assert.Equal(t, intp(3), md.Season)
		assert.Equal(t, intp(4), md.Episode)
		assert.Equal(t, "tt2", md.ExternalID)
	})

	t.Run("multi episode record leaves episode unset", func(t *testing.T) {
		record := &models.SearchResult{Query: "tt2/s3", Episodes: []int{4, 5}}
		md := ExtractFromSearch(record, ExtractFromFilename("video.mkv"))
		assert.Equal(t, "video", md.Title)
		assert.Equal(t, intp(3), md.Season)
		assert.Nil(t, md.Episode)
	})

	t.Run("no record", func(t *testing.T) {
		in := Metadata{Title: "x"}
		assert.Equal(t, in, ExtractFromSearch(nil, in))
	})
}

func TestNormalizeFilename(t *testing.T) {
	assert.Equal(t, "Magic Series S01E02.mp4", NormalizeFilename("Magic. Series/ S01E2.mp4", "Magic Series", intp(1), intp(2)))
	assert.Equal(t, "Magic Series S01.mp4", NormalizeFilename("x.mp4", "magic series", intp(1), nil))
	assert.Equal(t, "Great Movie.mkv", NormalizeFilename("great.movie.mkv", "great movie", nil, nil))
	assert.Equal(t, "original.mkv", NormalizeFilename("original.mkv", "", intp(1), intp(1)))
}

func TestNormalizeRoundTripIgnoresSeparators(t *testing.T) {
	inputs := []string{
		"magic.series.s01e02.mkv",
		"Magic_Series_S01E02.mkv",
		"Magic Series S01E02.mkv",
		"MAGIC.SERIES.S01.E02.mkv",
		"Magic Series Season 1 Episode 2.mkv",
	}
	for _, input := range inputs {
		md := ExtractFromFilename(input)
		assert.Equal(t, "Magic Series S01E02.mkv", NormalizeFilename(input, md.Title, md.Season, md.Episode), input)
	}
}

func TestDirNames(t *testing.T) {
	assert.Equal(t, "Test Movie [imdbid-tt001]", LibraryDirName("test movie", "tt001"))
	assert.Equal(t, "Test Movie", LibraryDirName("test.movie", ""))
	assert.Equal(t, "season 01", SeasonDirName(1))
	assert.Equal(t, "season 12", SeasonDirName(12))
	assert.Equal(t, "a b", SanitizeDirName("a/b"))
	assert.Equal(t, "download", SanitizeDirName(".."))
}

func TestIsVideo(t *testing.T) {
	tests := []struct {
		name string
		mime string
		want bool
	}{
		{"movie.bin", "video/x-matroska", true},
		{"movie.mkv", "", true},
		{"movie.MP4", "application/octet-stream", true},
		{"movie.avi", "", true},
		{"movie.mkv", "text/plain", false},
		{"info.nfo", "", false},
		{"readme.txt", "", false},
		{"cover.jpg", "image/jpeg", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsVideo(tt.name, tt.mime), tt.name+" "+tt.mime)
	}
}

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	}
}

func TestFindExistingByExternalID(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "test movie series [imdbid-tt000]/Season 01")

	dir, ok, err := FindExisting(root, "Wrong title", intp(1), nil, "tt000")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "test movie series [imdbid-tt000]", "Season 01"), dir)
}

func TestFindExistingByTitle(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Magic.Series", "Magic Seriesly")
	require.NoError(t, os.WriteFile(filepath.Join(root, "magic series.txt"), nil, 0644))

	dir, ok, err := FindExisting(root, "magic series", intp(2), nil, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "Magic.Series", "season 02"), dir)

	dir, ok, err = FindExisting(root, "Magic Series", nil, nil, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "Magic.Series"), dir)
}

func TestFindExistingWholeWordOnly(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Dunes of Mars")

	_, ok, err := FindExisting(root, "Dune", nil, nil, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindExistingSkipsDifferentlyTaggedFolders(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Dune [imdbid-tt0087182]")

	_, ok, err := FindExisting(root, "Dune", nil, nil, "tt1160419")
	require.NoError(t, err)
	assert.False(t, ok)

	dir, ok, err := FindExisting(root, "Dune", nil, nil, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "Dune [imdbid-tt0087182]"), dir)
}

func TestFindExistingPrefersExternalID(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Dune", "Dune Part One [imdbid-tt1160419]")

	dir, ok, err := FindExisting(root, "Dune", nil, nil, "tt1160419")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "Dune Part One [imdbid-tt1160419]"), dir)
}

func TestFindExistingMissingRoot(t *testing.T) {
	_, ok, err := FindExisting(filepath.Join(t.TempDir(), "missing"), "x", nil, nil, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
