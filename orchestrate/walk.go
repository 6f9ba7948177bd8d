package orchestrate

import (
	"os"
	"path"
	"path/filepath"
)

// Entry is one node of a pre-order firmware tree walk. RelPath is rooted at
// "/", the firmware root's own entry being recorded as "/" itself.
type Entry struct {
	RelPath string
	AbsPath string
}

// Walk performs a deterministic pre-order walk of root: the directory entry
// itself is emitted before its children, and a directory's children are
// visited in the order the OS returns them, with subdirectories recursed
// into immediately after they are emitted.
func Walk(root string) ([]Entry, error) {
	var entries []Entry

	var visit func(dir, rel string) error
	visit = func(dir, rel string) error {
		entries = append(entries, Entry{RelPath: rel, AbsPath: dir})

		f, err := os.Open(dir)
		if err != nil {
			return err
		}
		names, err := f.Readdirnames(-1)
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}

		for _, name := range names {
			childAbs := filepath.Join(dir, name)
			childRel := path.Join(rel, name)

			info, err := os.Lstat(childAbs)
			if err != nil {
				return err
			}
			if info.IsDir() {
				if err := visit(childAbs, childRel); err != nil {
					return err
				}
				continue
			}
			entries = append(entries, Entry{RelPath: childRel, AbsPath: childAbs})
		}
		return nil
	}

	if err := visit(root, "/"); err != nil {
		return nil, err
	}
	return entries, nil
}
