package git

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// IgnoredEntries are the files k8sviz creates that must not be committed.
var IgnoredEntries = []string{".k8sviz.yaml", "neo4j-data/"}

// IsRepository checks if dir is inside a Git work tree.
func IsRepository(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	return cmd.Run() == nil
}

// UpdateGitignore ensures that entries are present in dir/.gitignore.
// Outside a Git repository it only prints a reminder.
func UpdateGitignore(dir string, entries []string, out io.Writer) error {
	if !IsRepository(dir) {
		fmt.Fprintln(out, "\nNote: Not inside a Git repository. If you initialize one later,")
		fmt.Fprintf(out, "remember to add the following to your .gitignore: %s\n", strings.Join(entries, ", "))
		return nil
	}

	added, err := appendMissing(filepath.Join(dir, ".gitignore"), entries)
	if err != nil {
		return err
	}

	if len(added) > 0 {
		fmt.Fprintf(out, "\n✓ Added the following entries to .gitignore: %s\n", strings.Join(added, ", "))
	} else {
		fmt.Fprintln(out, "\n✓ .gitignore already contains the necessary entries.")
	}
	fmt.Fprintln(out, "This prevents committing the Neo4j password and local database files.")

	return nil
}

// appendMissing appends the entries not yet listed in the file and returns them.
func appendMissing(path string, entries []string) ([]string, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open or create .gitignore: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("could not seek in .gitignore: %w", err)
	}

	scanner := bufio.NewScanner(file)
	existing := make(map[string]bool)
	for scanner.Scan() {
		existing[strings.TrimSpace(scanner.Text())] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading .gitignore: %w", err)
	}

	var added []string
	for _, entry := range entries {
		if existing[entry] {
			continue
		}
		if _, err := file.WriteString("\n" + entry); err != nil {
			return nil, fmt.Errorf("failed to write to .gitignore: %w", err)
		}
		existing[entry] = true
		added = append(added, entry)
	}
	return added, nil
}
