package indexer

import (
	"bytes"
	"fmt"

	"github.com/anacrolix/torrent/metainfo"
)

// ValidateTorrent checks that a downloaded payload is a well-formed torrent
// file. Providers serving torrents wire this as their download validator so
// soft error pages never reach a download client.
func ValidateTorrent(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty torrent payload")
	}
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid torrent file contents: %w", err)
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return fmt.Errorf("invalid torrent info dictionary: %w", err)
	}
	if info.Name == "" && len(info.Files) == 0 {
		return fmt.Errorf("torrent file names no content")
	}
	return nil
}
