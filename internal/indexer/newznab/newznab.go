package newznab

import (
	"github.com/fetcharr/fetcharr/internal/indexer"
)

// NewProvider wires a Newznab (usenet) or Torznab (torrent) provider from
// its definition, settings and discovered capabilities. Torrent providers
// get download payload validation; the shared generator and parser handle
// both flavors since the wire protocol is identical apart from the torrent
// attr namespace.
func NewProvider(def indexer.Definition, settings Settings, caps *indexer.Capabilities) *indexer.Provider {
	p := &indexer.Provider{
		Definition:   def,
		Capabilities: caps,
		Generator:    NewGenerator(&def, settings, caps),
		Parser:       NewParser(&def, settings, caps),
	}
	if def.Protocol == indexer.ProtocolTorrent {
		p.ValidateDownload = indexer.ValidateTorrent
	}
	if settings.VipExpiration != "" {
		p.Warnings = settings.VipWarnings
	}
	return p
}
