package extractors

import (
	"context"
	"fmt"
	"net/http"

	"embed-resolver/pkg/flaresolverr"
	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
)

// solver is the part of flaresolverr.Client the backend needs.
type solver interface {
	CreateSession(ctx context.Context) (string, error)
	DestroySession(ctx context.Context, session string) error
	Get(ctx context.Context, targetURL, session string) (*flaresolverr.Response, error)
}

// FlareSolverrExtractor renders the page in a FlareSolverr browser and reads
// the iframe from the rendered HTML.
type FlareSolverrExtractor struct {
	*BaseExtractor
	client solver
}

// NewFlareSolverrExtractor creates an extractor backed by a FlareSolverr instance.
func NewFlareSolverrExtractor(client *flaresolverr.Client, marker string, log *logging.Logger) *FlareSolverrExtractor {
	return newFlareSolverrExtractor(client, marker, log)
}

func newFlareSolverrExtractor(client solver, marker string, log *logging.Logger) *FlareSolverrExtractor {
	return &FlareSolverrExtractor{
		BaseExtractor: NewBaseExtractor("flaresolverr", marker, log),
		client:        client,
	}
}

// Extract renders pageURL and returns the matching iframe src.
func (e *FlareSolverrExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	var src string
	err := e.withSession(ctx, func(session string) error {
		resp, err := e.client.Get(ctx, pageURL, session)
		if err != nil {
			return err
		}
		if resp.Solution.Status >= http.StatusBadRequest {
			return fmt.Errorf("page returned status %d", resp.Solution.Status)
		}

		src, err = FindIframe(resp.Solution.Response, pageURL, e.marker)
		return err
	})
	if err != nil {
		return "", extractionError(e.name, err)
	}
	return src, nil
}

// withSession runs fn inside a dedicated FlareSolverr browser session and
// destroys the session on every exit path.
func (e *FlareSolverrExtractor) withSession(ctx context.Context, fn func(session string) error) error {
	session, err := e.client.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer func() {
		if err := e.client.DestroySession(context.WithoutCancel(ctx), session); err != nil {
			e.log.Warn("failed to destroy session", "session", session, "error", err)
		}
	}()

	return fn(session)
}

// Close releases resources.
func (e *FlareSolverrExtractor) Close() error {
	return nil
}

var _ interfaces.Extractor = (*FlareSolverrExtractor)(nil)
