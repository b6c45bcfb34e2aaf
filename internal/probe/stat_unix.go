//go:build !windows

package probe

import (
	"os"
	"syscall"

	"github.com/sadopc/duscope/internal/model"
)

// metadataFromInfo extracts identity, block usage and link count from lstat
// results. Blocks are always 512-byte units.
func metadataFromInfo(info os.FileInfo) Metadata {
	kind := model.KindFromMode(info.Mode())
	m := Metadata{
		Kind:  kind,
		Size:  info.Size(),
		Mtime: info.ModTime(),
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		m.Allocated = info.Size()
		m.Estimated = true
		return m
	}
	m.Allocated = int64(stat.Blocks) * 512
	m.Nlink = uint64(stat.Nlink)
	m.Identity = model.Identity{Dev: uint64(stat.Dev), Ino: uint64(stat.Ino)}
	m.HasIdentity = kind == model.KindFile || kind == model.KindDir
	return m
}
