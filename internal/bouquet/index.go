package bouquet

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IndexName is the receiver's TV bouquet index file.
const IndexName = "bouquets.tv"

// indexLine renders the registration line for one bouquet file.
func indexLine(fileName string) string {
	return fmt.Sprintf("#SERVICE 1:7:1:0:0:0:0:0:0:0:FROM BOUQUET %q ORDER BY bouquet", fileName)
}

// Splice inserts the registration line for fileName into the index, creating
// the index when absent. Idempotent: when a line referencing fileName is
// already present nothing is written. Pre-existing lines keep their content
// and relative order; the new line goes at the end, which the receiver
// treats as lowest bouquet priority.
func (e *Exporter) Splice(fileName string) error {
	path := e.indexPath()
	quoted := fmt.Sprintf("%q", fileName)

	data, err := e.vfs.ReadFile(path)
	if err != nil {
		// No index yet: a bare receiver image. Start one.
		if err := e.vfs.MkdirAll(e.dir, 0o755); err != nil {
			return err
		}
		content := "#NAME Bouquets (TV)\n" + indexLine(fileName) + "\n"
		return e.vfs.WriteFile(path, []byte(content), 0o644)
	}

	content := string(data)
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, quoted) {
			return nil
		}
	}

	if err := e.backupIndex(data); err != nil {
		return fmt.Errorf("index backup: %w", err)
	}
	if !strings.HasSuffix(content, "\n") && content != "" {
		content += "\n"
	}
	content += indexLine(fileName) + "\n"
	return e.vfs.WriteFile(path, []byte(content), 0o644)
}

// Unsplice removes the registration lines owned by fileName (matched by the
// quoted filename) plus one immediately following blank line each, leaving
// every other byte untouched. When no line matches, the file is not written
// at all, so it stays byte-identical.
func (e *Exporter) Unsplice(fileName string) error {
	path := e.indexPath()
	quoted := fmt.Sprintf("%q", fileName)

	data, err := e.vfs.ReadFile(path)
	if err != nil {
		return nil // nothing to remove
	}

	lines := strings.Split(string(data), "\n")
	out := make([]string, 0, len(lines))
	removed := false
	for i := 0; i < len(lines); i++ {
		if strings.Contains(lines[i], quoted) {
			removed = true
			if i+1 < len(lines) && lines[i+1] == "" && i+1 != len(lines)-1 {
				i++ // swallow the blank line that followed our entry
			}
			continue
		}
		out = append(out, lines[i])
	}
	if !removed {
		return nil
	}

	if err := e.backupIndex(data); err != nil {
		return fmt.Errorf("index backup: %w", err)
	}
	return e.vfs.WriteFile(path, []byte(strings.Join(out, "\n")), 0o644)
}

// backupIndex writes a copy of the current index before it is mutated. The
// random suffix keeps successive backups from clobbering each other.
func (e *Exporter) backupIndex(data []byte) error {
	name := fmt.Sprintf("%s.%s.bak", e.indexPath(), uuid.NewString()[:8])
	return e.vfs.WriteFile(name, data, 0o644)
}
