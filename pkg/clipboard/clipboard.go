package clipboard

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
)

func Copy(text string) error {
	return clipboard.WriteAll(text)
}

func Paste() (string, error) {
	return clipboard.ReadAll()
}

// TableRef formats a fully qualified table reference as used in standard SQL.
func TableRef(projectID, datasetID, tableID string) string {
	return fmt.Sprintf("%s.%s.%s", projectID, datasetID, tableID)
}

func DatasetRef(projectID, datasetID string) string {
	return fmt.Sprintf("%s.%s", projectID, datasetID)
}

// LegacyTableRef formats a table reference for legacy SQL, e.g. [p:d.t].
func LegacyTableRef(projectID, datasetID, tableID string) string {
	return fmt.Sprintf("[%s:%s.%s]", projectID, datasetID, tableID)
}

// CopyTableRef copies the standard SQL reference of a table and returns it.
func CopyTableRef(projectID, datasetID, tableID string) (string, error) {
	ref := TableRef(strings.TrimSpace(projectID), strings.TrimSpace(datasetID), strings.TrimSpace(tableID))
	if err := Copy(ref); err != nil {
		return "", fmt.Errorf("failed to copy %s: %w", ref, err)
	}
	return ref, nil
}
