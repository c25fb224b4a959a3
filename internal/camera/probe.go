package camera

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/BAT6188/libcamera2/internal/api"
	"github.com/BAT6188/libcamera2/pkg/v4l2/device"
)

type probe struct {
	Path    string   `json:"path"`
	Driver  string   `json:"driver,omitempty"`
	Format  string   `json:"format"`
	Name    string   `json:"name,omitempty"`
	Sizes   []string `json:"sizes,omitempty"`
	Support bool     `json:"supported"`
}

// apiProbe lists V4L2 nodes with the formats and sizes they report.
func apiProbe(w http.ResponseWriter, r *http.Request) {
	files, err := os.ReadDir("/dev")
	if err != nil {
		api.Error(w, err, http.StatusInternalServerError)
		return
	}

	var items []probe

	for _, file := range files {
		if !strings.HasPrefix(file.Name(), "video") {
			continue
		}

		path := "/dev/" + file.Name()

		dev, err := device.Open(path)
		if err != nil {
			continue
		}

		var driver string
		if cp, err := dev.Capability(); err == nil {
			if !cp.CanStream() {
				_ = dev.Close()
				continue
			}
			driver = cp.Driver
		}

		formats, _ := dev.ListFormats()
		for _, fourCC := range formats {
			item := probe{Path: path, Driver: driver, Format: device.FourCCString(fourCC)}

			for _, format := range device.Formats {
				if format.FourCC == fourCC {
					item.Name = format.Name
					item.Support = true
					break
				}
			}

			sizes, _ := dev.ListSizes(fourCC)
			for _, size := range sizes {
				item.Sizes = append(item.Sizes, fmt.Sprintf("%dx%d", size[0], size[1]))
			}

			items = append(items, item)
		}

		_ = dev.Close()
	}

	api.ResponseJSON(w, items)
}
