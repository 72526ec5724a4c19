package app

import (
	"context"
	"encoding/json"
	"os"
)

// Lookup resolves one outcome id against a freshly fetched catalog and prints
// the metadata as JSON.
func (a *App) Lookup(ctx context.Context, outcomeID string) error {
	info, err := a.newSources().catalog.LookupFresh(ctx, outcomeID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
