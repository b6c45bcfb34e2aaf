package ops

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"emperror.dev/errors"

	"github.com/sadopc/duscope/internal/model"
)

// ncdu export format, major version 1, minor 2:
// [1, 2, {"progname":"duscope","progver":"1.0","timestamp":1234567890},
//   [{"name":"/path","asize":123,"dsize":456},
//     {"name":"file1","asize":10,"dsize":20},
//     [{"name":"subdir","asize":30,"dsize":40},
//       {"name":"file2","asize":5,"dsize":10}
//     ]
//   ]
// ]

const progname = "duscope"

type ncduHeader struct {
	Progname  string `json:"progname"`
	Progver   string `json:"progver"`
	Timestamp int64  `json:"timestamp"`
}

type ncduEntry struct {
	Name     string `json:"name"`
	Asize    int64  `json:"asize,omitempty"`
	Dsize    int64  `json:"dsize,omitempty"`
	Dev      uint64 `json:"dev,omitempty"`
	Ino      uint64 `json:"ino,omitempty"`
	Nlink    uint64 `json:"nlink,omitempty"`
	Hlnkc    bool   `json:"hlnkc,omitempty"`
	Err      bool   `json:"read_error,omitempty"`
	NotReg   bool   `json:"notreg,omitempty"`
	Excluded string `json:"excluded,omitempty"`
	Mtime    int64  `json:"mtime,omitempty"`
}

// errWriter keeps the first write error and turns later writes into no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (ew *errWriter) encode(v any) {
	if ew.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		ew.err = err
		return
	}
	_, ew.err = ew.w.Write(data)
}

// ExportJSON writes the tree as ncdu JSON to path, or to stdout for "-".
// File targets are written to a temp file and renamed into place, so a
// failed export never leaves a partial file.
func ExportJSON(tree *model.Tree, path, version string) (retErr error) {
	if path == "-" {
		return WriteJSON(tree, os.Stdout, version)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".duscope-export-*.tmp")
	if err != nil {
		return errors.WrapIf(err, "cannot create export file")
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := WriteJSON(tree, tmp, version); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		// Windows cannot rename over an existing file.
		if runtime.GOOS != "windows" {
			return err
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return errors.WrapIfWithDetails(err, "cannot replace export file", "path", path)
		}
		return os.Rename(tmpPath, path)
	}
	return nil
}

// WriteJSON writes the tree to out under the read lock.
func WriteJSON(tree *model.Tree, out io.Writer, version string) error {
	if version == "" {
		version = "dev"
	}
	bw := bufio.NewWriterSize(out, 64*1024)
	ew := &errWriter{w: bw}

	ew.WriteString("[1, 2, ")
	ew.encode(ncduHeader{Progname: progname, Progver: version, Timestamp: time.Now().Unix()})
	ew.WriteString(",\n")
	tree.View(func(root *model.Node) {
		writeNode(ew, root)
	})
	ew.WriteString("\n]\n")
	if ew.err != nil {
		return errors.WrapIf(ew.err, "cannot write export")
	}
	return bw.Flush()
}

func writeNode(ew *errWriter, n *model.Node) {
	if !n.IsDir() {
		ew.encode(entryFor(n))
		return
	}

	ew.WriteString("[")
	ew.encode(entryFor(n))
	children := n.Children()
	model.SortNodes(children, model.SortConfig{Field: model.SortByName, Order: model.SortAsc})
	for _, c := range children {
		if ew.err != nil {
			return
		}
		ew.WriteString(",\n")
		writeNode(ew, c)
	}
	ew.WriteString("]")
}

// entryFor describes a node's own entry. Directory sizes are the entry's
// own cost; ncdu sums the children itself.
func entryFor(n *model.Node) ncduEntry {
	e := ncduEntry{
		Name:  n.Name,
		Asize: n.OwnApparent,
		Dsize: n.OwnAllocated,
		Err:   n.State == model.StateErrored,
	}
	if !n.Mtime.IsZero() {
		e.Mtime = n.Mtime.Unix()
	}
	if n.HasIdentity && n.IsDir() {
		e.Dev = n.Identity.Dev
	}
	if n.HasIdentity && !n.IsDir() && n.Nlink > 1 {
		e.Ino = n.Identity.Ino
		e.Nlink = n.Nlink
		e.Hlnkc = true
	}
	if n.Kind == model.KindSymlink || n.Kind == model.KindOther {
		e.NotReg = true
	}
	if n.Flags&model.FlagOtherDevice != 0 {
		e.Excluded = "otherfs"
	}
	return e
}
