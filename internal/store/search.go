package store

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfmyers9/lyricsync/internal/lyrics"
)

const (
	localSource   = "local"
	unknownField  = "Unknown"
	tagScanLines  = 10
	nameSeparator = " - "
)

// Name implements lyrics.Provider
func (s *Store) Name() string {
	return localSource
}

// Search matches cached files by name first, then by content. Tags in the
// first lines of a content match fill in title and artist.
func (s *Store) Search(ctx context.Context, query string) ([]lyrics.Result, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	files, err := filepath.Glob(filepath.Join(s.dir, "*.lrc"))
	if err != nil {
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}

	var results []lyrics.Result
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		stem := strings.TrimSuffix(filepath.Base(path), ".lrc")
		if strings.Contains(strings.ToLower(stem), needle) {
			artist, title, ok := strings.Cut(stem, nameSeparator)
			if !ok {
				artist, title = unknownField, stem
			}
			results = append(results, s.result(path, title, artist))
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Debug().Err(err).Str("path", path).Msg("Skipping unreadable file")
			continue
		}
		content := string(data)
		if !strings.Contains(strings.ToLower(content), needle) {
			continue
		}
		title, artist := scanTags(content)
		results = append(results, s.result(path, title, artist))
	}
	return results, nil
}

// Download reads a local file by path
func (s *Store) Download(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", lyrics.ErrNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func (s *Store) result(path, title, artist string) lyrics.Result {
	return lyrics.Result{
		Source: localSource,
		ID:     lyrics.ResultID(localSource, path),
		Title:  title,
		Artist: artist,
	}
}

// scanTags reads [ti:] and [ar:] from the first lines of content
func scanTags(content string) (title, artist string) {
	title, artist = unknownField, unknownField
	sc := bufio.NewScanner(strings.NewReader(content))
	for i := 0; i < tagScanLines && sc.Scan(); i++ {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "[ti:") && strings.HasSuffix(line, "]"):
			title = strings.TrimSpace(line[4 : len(line)-1])
		case strings.HasPrefix(line, "[ar:") && strings.HasSuffix(line, "]"):
			artist = strings.TrimSpace(line[4 : len(line)-1])
		}
	}
	return title, artist
}
