package app

import (
	"context"
	"fmt"
	"text/tabwriter"
)

// Sports prints the active sports offered by the pricing service.
func (a *App) Sports(ctx context.Context) error {
	rt, err := a.openBackends(ctx, backendOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	sports, err := a.newSource(rt.redis).FetchSports(ctx)
	if err != nil {
		return fmt.Errorf("fetch sports: %w", err)
	}
	if len(sports) == 0 {
		fmt.Fprintln(a.Out, "no active sports")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Key\tGroup\tTitle\tDescription")
	for _, s := range sports {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", s.Key, s.Group, s.Title, s.Description)
	}
	return writer.Flush()
}
