package batch

import (
	"encoding/json"
	"os"
)

// ManifestEntry represents one rendered job in the output manifest.
type ManifestEntry struct {
	Name    string   `json:"name"`
	Objects []string `json:"objects"`
	Frames  []Frame  `json:"frames"`
}

// WriteManifest writes the successful results as JSON to path.
func WriteManifest(path string, results []Result) error {
	entries := make([]ManifestEntry, 0, len(results))
	for _, r := range results {
		if !r.Success {
			continue
		}
		entries = append(entries, ManifestEntry{
			Name:    r.Name,
			Objects: r.Objects,
			Frames:  r.Frames,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
