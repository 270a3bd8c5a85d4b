package ingest

import (
	"mime"

	"uk.co.dudmesh.bitlink/pkg/waclient"
)

// mediaFilename picks a filename for an attachment: the explicit one if
// the source sent it, else one derived from the mime type, else file.bin.
func mediaFilename(media *waclient.Media) string {
	if media.Filename != "" {
		return media.Filename
	}
	if exts, err := mime.ExtensionsByType(media.MimeType); err == nil && len(exts) > 0 {
		return "file" + exts[0]
	}
	return "file.bin"
}
