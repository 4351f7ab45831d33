//go:build linux || darwin || windows

package clip

import (
	"fmt"

	"golang.design/x/clipboard"
)

// readItems collects the text and image representations the display server
// currently offers.
func readItems() ([]Item, error) {
	var items []Item
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		items = append(items, Item{MIME: MIMEText, Data: text})
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		items = append(items, Item{MIME: MIMEPNG, Data: img})
	}
	return items, nil
}

// writeItems pushes items onto the system clipboard.
func writeItems(items []Item) error {
	for _, it := range items {
		switch it.MIME {
		case MIMEText:
			clipboard.Write(clipboard.FmtText, it.Data)
		case MIMEPNG:
			clipboard.Write(clipboard.FmtImage, it.Data)
		default:
			return fmt.Errorf("unsupported MIME type: %s", it.MIME)
		}
	}
	return nil
}
