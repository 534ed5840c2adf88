package pipeline

import (
	"errors"
	"fmt"
	"os"

	"apisurface/internal/surface"
)

// ShipResult describes a ship run.
type ShipResult struct {
	// Previous is the shipped file before the run, nil when it was missing.
	Previous  *surface.Surface
	Shipped   *surface.Surface
	Unshipped *surface.Surface
	Moved     int
}

// Ship folds the unshipped file into the shipped file and leaves an empty
// unshipped file behind. Either file may be missing.
func Ship(shippedPath, unshippedPath string, dryRun bool) (*ShipResult, error) {
	previous, err := surface.LoadShipped(shippedPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	shipped := previous
	if shipped == nil {
		shipped = surface.New()
	}

	unshipped, err := surface.LoadUnshipped(unshippedPath)
	if errors.Is(err, os.ErrNotExist) {
		unshipped = shipped.Empty()
	} else if err != nil {
		return nil, err
	}

	res := &ShipResult{
		Previous:  previous,
		Shipped:   surface.Ship(shipped, unshipped),
		Unshipped: shipped.Empty(),
		Moved:     unshipped.Count(),
	}
	if dryRun {
		return res, nil
	}

	if err := res.Shipped.Save(shippedPath); err != nil {
		return nil, fmt.Errorf("failed to write shipped file: %w", err)
	}
	if err := res.Unshipped.Save(unshippedPath); err != nil {
		return nil, fmt.Errorf("failed to write unshipped file: %w", err)
	}
	return res, nil
}
