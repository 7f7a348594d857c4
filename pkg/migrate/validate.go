package migrate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	markerUp            = "-- +goose Up"
	markerDown          = "-- +goose Down"
	markerBegin         = "-- +goose StatementBegin"
	markerEnd           = "-- +goose StatementEnd"
	markerNoTransaction = "-- +goose NO TRANSACTION"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// sections holds the SQL of one migration split on the goose markers.
type sections struct {
	up, down      []string
	noTransaction bool
}

// ValidateDir checks migration filenames, version uniqueness and goose markers.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		name := e.Name()
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		if err := validateFile(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}

	if len(seen) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}
	return nil
}

func validateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := splitSections(bufio.NewScanner(f))
	if err != nil {
		return err
	}
	if len(s.up) == 0 {
		return fmt.Errorf("empty %q section", markerUp)
	}
	// postgres refuses concurrent index builds inside the transaction goose opens
	if !s.noTransaction && strings.Contains(strings.ToUpper(strings.Join(s.up, "\n")), "CONCURRENTLY") {
		return fmt.Errorf("CONCURRENTLY requires %q", markerNoTransaction)
	}
	return nil
}

func splitSections(scanner *bufio.Scanner) (sections, error) {
	var (
		s       sections
		current *[]string
		sawUp   bool
		sawDown bool
		open    bool
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == markerNoTransaction:
			s.noTransaction = true
		case strings.HasPrefix(line, markerUp):
			if sawDown {
				return s, fmt.Errorf("%q must precede %q", markerUp, markerDown)
			}
			sawUp, current = true, &s.up
		case strings.HasPrefix(line, markerDown):
			if open {
				return s, fmt.Errorf("%q inside an open statement block", markerDown)
			}
			sawDown, current = true, &s.down
		case line == markerBegin:
			if open {
				return s, fmt.Errorf("nested %q", markerBegin)
			}
			open = true
		case line == markerEnd:
			if !open {
				return s, fmt.Errorf("%q without %q", markerEnd, markerBegin)
			}
			open = false
		case line == "" || strings.HasPrefix(line, "--"):
		default:
			if current == nil {
				return s, fmt.Errorf("sql before %q", markerUp)
			}
			*current = append(*current, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return s, err
	}
	switch {
	case !sawUp:
		return s, fmt.Errorf("missing %q", markerUp)
	case !sawDown:
		return s, fmt.Errorf("missing %q", markerDown)
	case open:
		return s, fmt.Errorf("unterminated %q", markerBegin)
	}
	return s, nil
}
