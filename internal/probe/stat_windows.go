//go:build windows

package probe

import (
	"os"

	"github.com/sadopc/duscope/internal/model"
)

// metadataFromInfo on Windows falls back to apparent size for disk usage.
// Identities are not available, so hard links are not detected.
func metadataFromInfo(info os.FileInfo) Metadata {
	return Metadata{
		Kind:      model.KindFromMode(info.Mode()),
		Size:      info.Size(),
		Allocated: info.Size(),
		Mtime:     info.ModTime(),
		Estimated: true,
	}
}
