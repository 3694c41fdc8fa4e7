package storage

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/chrissnell/pvreconcile/internal/types"
)

// DumpPath returns the path of the excluded-row dump of site for reason.
func DumpPath(dir, siteID string, reason types.Reason) string {
	return filepath.Join(dir, siteID+".excluded."+string(reason)+".csv")
}

// DumpExcluded writes the rows removed for each reason to its own CSV.
// Reasons without rows produce no file. It returns the paths written.
func DumpExcluded(dir, siteID string, fields []types.Field, excluded map[types.Reason][]types.Reading) ([]string, error) {
	reasons := make([]types.Reason, 0, len(excluded))
	for r, rows := range excluded {
		if len(rows) > 0 {
			reasons = append(reasons, r)
		}
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	var paths []string
	for _, reason := range reasons {
		rows := append([]types.Reading(nil), excluded[reason]...)
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })

		path := DumpPath(dir, siteID, reason)
		err := replaceFile(path, func(f *os.File) error {
			return WriteCSV(f, fields, rows)
		})
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
