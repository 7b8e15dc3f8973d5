package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/khetumewada/WebChat/internal/backend"
	"github.com/khetumewada/WebChat/internal/search"
	"github.com/khetumewada/WebChat/internal/view"
	"github.com/khetumewada/WebChat/internal/ws"
)

// Search runs one user search as the header search box would and writes
// the resulting dropdown markup to out.
func Search(ctx context.Context, origin, userID, query string, out io.Writer, logger *slog.Logger) error {
	client, err := backend.New(origin, backend.WithHeader(ws.UserHeader, userID))
	if err != nil {
		return err
	}

	dropdown := view.NewDropdown()
	ctrl := search.NewController(client, dropdown, nil, logger)
	ctrl.Input(ctx, query)
	ctrl.Wait()

	if !dropdown.Visible() {
		return nil
	}
	return dropdown.Render(out)
}
