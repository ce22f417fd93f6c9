package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogUnavailable indicates no catalog has been loaded (yet, or at all)
	ErrCatalogUnavailable = errors.New("cluster catalog is not available")

	// ErrUnsupportedSource indicates the catalog source scheme is not supported
	ErrUnsupportedSource = errors.New("unsupported catalog source")
)

// CatalogError reports an invalid catalog entry.
type CatalogError struct {
	Cluster   string // Cluster the entry belongs to
	Partition string // Partition, when the problem is partition specific
	Reason    string
}

func (e *CatalogError) Error() string {
	switch {
	case e.Cluster == "":
		return fmt.Sprintf("invalid catalog: %s", e.Reason)
	case e.Partition == "":
		return fmt.Sprintf("invalid catalog: cluster %s: %s", e.Cluster, e.Reason)
	default:
		return fmt.Sprintf("invalid catalog: cluster %s, partition %s: %s", e.Cluster, e.Partition, e.Reason)
	}
}

// SlurmConfError reports a slurm.conf line that could not be imported.
type SlurmConfError struct {
	Line    int    // Line number where the entry starts
	Content string // Line content
	Reason  string
}

func (e *SlurmConfError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("slurm.conf line %d (%s): %s", e.Line, e.Content, e.Reason)
	}
	return fmt.Sprintf("slurm.conf: %s", e.Reason)
}

// IsCatalogError checks if an error is a CatalogError
func IsCatalogError(err error) bool {
	var ce *CatalogError
	return errors.As(err, &ce)
}

// IsSlurmConfError checks if an error is a SlurmConfError
func IsSlurmConfError(err error) bool {
	var se *SlurmConfError
	return errors.As(err, &se)
}
