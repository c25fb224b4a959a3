package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/BAT6188/libcamera2/internal/app"
	"github.com/BAT6188/libcamera2/pkg/yaml"
)

// configHandler serves the config file:
// GET returns it, POST replaces it, PATCH sets one key.
// PATCH /api/config?key=camera.device&value=/dev/video1
func configHandler(w http.ResponseWriter, r *http.Request) {
	if app.ConfigPath == "" {
		http.Error(w, "", http.StatusGone)
		return
	}

	switch r.Method {
	case "GET":
		data, err := os.ReadFile(app.ConfigPath)
		if err != nil {
			http.Error(w, "", http.StatusNotFound)
			return
		}
		Response(w, data, MimeYAML)

	case "POST":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var doc map[string]any
		if err = yaml.Unmarshal(data, &doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err = writeConfig(app.ConfigPath, data); err != nil {
			Error(w, err, http.StatusInternalServerError)
			return
		}

	case "PATCH":
		query := r.URL.Query()
		keys := strings.Split(query.Get("key"), ".")
		key := keys[len(keys)-1]
		if key == "" {
			http.Error(w, "empty key", http.StatusBadRequest)
			return
		}

		var value any
		if err := yaml.Unmarshal([]byte(query.Get("value")), &value); err != nil || value == nil {
			value = query.Get("value")
		}

		if err := app.PatchConfig(key, value, keys[:len(keys)-1]...); err != nil {
			Error(w, err, http.StatusBadRequest)
			return
		}

	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}

// writeConfig replaces the file through a temp file in the same dir
// so readers never see a half written config.
func writeConfig(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".config-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err = f.Write(data); err == nil {
		err = f.Close()
	} else {
		_ = f.Close()
	}
	if err == nil {
		err = os.Chmod(tmp, 0644)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
	}
	return err
}
