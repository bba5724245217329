package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ParseSeedArg resolves the seed argument forms:
//
//	file:<path>            one URL per line, '#' comments allowed
//	single:<url>           exactly one URL
//	multi:"<url>","<url>"  a quoted, comma-separated list
//	<bare token>           a path if such a file exists, else a URL
func ParseSeedArg(arg string) ([]string, error) {
	switch {
	case strings.HasPrefix(arg, "file:"):
		return seedsFromFile(strings.TrimPrefix(arg, "file:"))
	case strings.HasPrefix(arg, "single:"):
		u := strings.TrimSpace(strings.TrimPrefix(arg, "single:"))
		if u == "" {
			return nil, fmt.Errorf("context: empty single: seed")
		}
		return []string{u}, nil
	case strings.HasPrefix(arg, "multi:"):
		return seedsFromList(strings.TrimPrefix(arg, "multi:"))
	default:
		if _, err := os.Stat(arg); err == nil {
			return seedsFromFile(arg)
		}
		return []string{arg}, nil
	}
}

func seedsFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("context: opening seed file %q: %w", path, err)
	}
	defer f.Close()

	var seeds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("context: reading seed file %q: %w", path, err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("context: seed file %q contains no seeds", path)
	}
	return seeds, nil
}

func seedsFromList(list string) ([]string, error) {
	var seeds []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `"'`)
		if part == "" {
			continue
		}
		seeds = append(seeds, part)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("context: multi: seed list is empty")
	}
	return seeds, nil
}
