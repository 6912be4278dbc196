package export

import (
	"fmt"
	"io"
	"os"
)

// spool holds a nested table's CSV on disk until its archive entry can be
// written. ZIP entries are sequential, so every table except the root would
// otherwise have to be held in memory for the whole stream.
type spool struct {
	file *os.File
}

func newSpool(dir string) (*spool, error) {
	f, err := os.CreateTemp(dir, "formbridge-table-*.csv")
	if err != nil {
		return nil, fmt.Errorf("create table spool: %w", err)
	}
	return &spool{file: f}, nil
}

func (s *spool) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

// drainTo copies the spooled bytes into w from the start.
func (s *spool) drainTo(w io.Writer) error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind table spool: %w", err)
	}
	if _, err := io.Copy(w, s.file); err != nil {
		return fmt.Errorf("copy table spool: %w", err)
	}
	return nil
}

// remove closes and deletes the spool file. Safe to call more than once.
func (s *spool) remove() {
	if s.file == nil {
		return
	}
	name := s.file.Name()
	s.file.Close()
	os.Remove(name)
	s.file = nil
}
