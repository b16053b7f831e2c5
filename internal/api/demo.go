package api

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"sync"
)

const demoTitle = "Pagemirror Demo"

// demoMarkdown is the embedded demo page source. It exercises the whole
// enrichment pipeline: headings feed the outline, the first image uses the
// reserved demonstration id, the second resolves against the demo side
// payload below.
const demoMarkdown = `# Pagemirror Demo

This page is built locally from embedded markdown and pushed through the same
enrichment pipeline as mirrored pages.

## Getting Started

Set ` + "`CONFLUENCE_BASE_URL`" + ` and ` + "`CONFLUENCE_API_TOKEN`" + `, then open
a page with ` + "`/?pageId=<id>`" + `.

![Demonstration image](demo-image)

## Attachments

Attachments referenced by the side payload resolve to download links:

![Handbook](handbook.pdf)

## Further Reading

*Outline entries* link back to **heading anchors** on this page.
`

// demoStorageHTML is the demo page's attachment side payload.
const demoStorageHTML = `<p><ac:structured-macro ac:name="view-file"><ac:parameter ac:name="name"><ri:attachment ri:filename="handbook.pdf"/></ac:parameter></ac:structured-macro></p>`

var demoImageOnce = sync.OnceValue(func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 0x4a, G: 0x90, B: 0xd9, A: 0xff})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
})

// handleDemoImage serves the fixed demonstration image the media resolver's
// reserved identifier maps to.
func (s *Server) handleDemoImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Write(demoImageOnce())
}
