package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bdashore3/Ferrite/pkg/debrid/cache"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// State is one step of a resolve attempt. States are reported through the
// StateFunc callback so the UI can show progress; the zero value is Idle.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateFileSelecting
	StatePolling
	StateUnlocking
	StateResolved
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateFileSelecting:
		return "file_selecting"
	case StatePolling:
		return "polling"
	case StateUnlocking:
		return "unlocking"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// StateFunc observes resolve state transitions. May be nil.
type StateFunc func(State)

// Resolver walks a magnet through a provider's submit/select/poll/unrestrict
// protocol, taking whichever shortcuts the client's capabilities allow.
type Resolver struct {
	cache          *cache.Cache
	logger         zerolog.Logger
	pollInterval   time.Duration
	pollTimeout    time.Duration
	cleanupTimeout time.Duration
}

func NewResolver(c *cache.Cache, logger zerolog.Logger) *Resolver {
	return &Resolver{
		cache:          c,
		logger:         logger,
		pollInterval:   time.Second,
		pollTimeout:    60 * time.Second,
		cleanupTimeout: 10 * time.Second,
	}
}

// SetPollInterval overrides the torrent status poll cadence.
func (r *Resolver) SetPollInterval(interval, timeout time.Duration) {
	r.pollInterval = interval
	r.pollTimeout = timeout
}

// Resolve produces a final download URL for the magnet. Cancellation is never
// a failure: the attempt ends in StateCancelled and no cleanup runs. Failures
// after a successful submit delete the torrent again so accounts do not
// accumulate half-finished entries.
func (r *Resolver) Resolve(ctx context.Context, client types.Client, magnet types.Magnet, sel types.Selection, onState StateFunc) (*types.ResolvedDownload, error) {
	notify := onState
	if notify == nil {
		notify = func(State) {}
	}
	if magnet.Hash == "" {
		notify(StateFailed)
		return nil, &types.InvalidInputError{Reason: "magnet has no hash"}
	}

	if lr, ok := client.(types.LocalResolver); ok {
		return r.resolveLocal(ctx, client, lr, magnet, sel, notify)
	}

	mr, ok := client.(types.MagnetResolver)
	if !ok {
		notify(StateFailed)
		return nil, &types.InvalidInputError{Reason: fmt.Sprintf("%s cannot resolve magnets", client.Name())}
	}

	if du, ok := client.(types.DownloadReuser); ok {
		dl, err := r.reuseExisting(ctx, client, du, mr, magnet, sel, notify)
		if err != nil {
			return nil, r.terminal(client, notify, err)
		}
		if dl != nil {
			notify(StateResolved)
			return dl, nil
		}
	}

	return r.resolveFresh(ctx, client, mr, magnet, sel, notify)
}

// resolveLocal serves providers whose availability records already carry
// final URLs. A cache miss triggers a single-magnet probe first.
func (r *Resolver) resolveLocal(ctx context.Context, client types.Client, lr types.LocalResolver, magnet types.Magnet, sel types.Selection, notify StateFunc) (*types.ResolvedDownload, error) {
	name := client.Name()
	origin := types.OriginReusedExisting
	rec, ok := r.cache.Get(name, magnet.Hash)
	if !ok {
		notify(StatePolling)
		records, err := client.CheckAvailability(ctx, []types.Magnet{magnet})
		if err != nil {
			return nil, r.terminal(client, notify, err)
		}
		r.cache.MergeBatch(name, records)
		rec, ok = r.cache.Get(name, magnet.Hash)
		if !ok {
			notify(StateFailed)
			return nil, &types.EmptyTorrentsError{Provider: name, TorrentID: magnet.Hash}
		}
		origin = types.OriginFreshlySubmitted
	}

	url, err := lr.ResolveLocal(rec, sel.FileIndex)
	if err != nil {
		return nil, r.terminal(client, notify, err)
	}
	notify(StateResolved)
	return &types.ResolvedDownload{URL: url, Origin: origin}, nil
}

// reuseExisting checks the account for a finished torrent with the same hash
// and, if found, reuses its link instead of submitting again. An existing
// unrestricted download short-circuits the unrestrict call too. Lookup
// failures fall back to a fresh submit; only cancellation aborts.
func (r *Resolver) reuseExisting(ctx context.Context, client types.Client, du types.DownloadReuser, mr types.MagnetResolver, magnet types.Magnet, sel types.Selection, notify StateFunc) (*types.ResolvedDownload, error) {
	name := client.Name()
	torrents, err := du.GetTorrents(ctx)
	if err != nil {
		if types.IsCancelled(err) {
			return nil, err
		}
		r.logger.Debug().Err(err).Msgf("%s torrent list unavailable, submitting fresh", name)
		return nil, nil
	}

	var match *types.Torrent
	for _, t := range torrents {
		if t.Hash == magnet.Hash && t.Status == "downloaded" && len(t.Links) > 0 {
			match = t
			break
		}
	}
	if match == nil {
		return nil, nil
	}
	link := pickLink(match.Links, sel)
	r.logger.Debug().Msgf("Reusing torrent %s for %s", match.ID, magnet.Hash)

	if downloads, err := du.GetDownloads(ctx); err == nil {
		for _, d := range downloads {
			if d.Link == link && d.URL != "" {
				return &types.ResolvedDownload{URL: d.URL, Origin: types.OriginReusedExisting}, nil
			}
		}
	} else if types.IsCancelled(err) {
		return nil, err
	}

	notify(StateUnlocking)
	url, err := mr.Unrestrict(ctx, link)
	if err != nil {
		return nil, err
	}
	return &types.ResolvedDownload{URL: url, Origin: types.OriginReusedExisting}, nil
}

// resolveFresh is the full submit/select/poll/unrestrict protocol.
func (r *Resolver) resolveFresh(ctx context.Context, client types.Client, mr types.MagnetResolver, magnet types.Magnet, sel types.Selection, notify StateFunc) (*types.ResolvedDownload, error) {
	name := client.Name()

	notify(StateSubmitting)
	id, err := mr.SubmitMagnet(ctx, magnet)
	if err != nil {
		return nil, r.terminal(client, notify, err)
	}

	if fs, ok := client.(types.FileSelector); ok {
		notify(StateFileSelecting)
		torrent, err := r.waitForFiles(ctx, name, mr, id)
		if err != nil {
			r.cleanup(client, mr, id, err)
			return nil, r.terminal(client, notify, err)
		}
		ids := fileIDs(torrent.Files, sel)
		if err := fs.SelectFiles(ctx, id, ids); err != nil {
			r.cleanup(client, mr, id, err)
			return nil, r.terminal(client, notify, err)
		}
	}

	notify(StatePolling)
	torrent, err := r.pollUntilDownloaded(ctx, name, mr, id)
	if err != nil {
		r.cleanup(client, mr, id, err)
		return nil, r.terminal(client, notify, err)
	}
	if len(torrent.Links) == 0 {
		// Left on the account on purpose: the caller can offer deleting the
		// stuck torrent instead of silently retrying.
		notify(StateFailed)
		return nil, &types.EmptyTorrentsError{Provider: name, TorrentID: id}
	}

	notify(StateUnlocking)
	url, err := mr.Unrestrict(ctx, pickLink(torrent.Links, sel))
	if err != nil {
		r.cleanup(client, mr, id, err)
		return nil, r.terminal(client, notify, err)
	}

	notify(StateResolved)
	return &types.ResolvedDownload{URL: url, Origin: types.OriginFreshlySubmitted}, nil
}

// waitForFiles polls until the torrent's file listing is populated, which for
// fresh magnets lags the submit by a metadata fetch.
func (r *Resolver) waitForFiles(ctx context.Context, name types.Provider, mr types.MagnetResolver, id string) (*types.Torrent, error) {
	deadline := time.NewTimer(r.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		torrent, err := mr.GetTorrent(ctx, id)
		if err != nil {
			return nil, err
		}
		if torrent.Status == "error" {
			return nil, &types.ProviderError{Provider: name, Step: "metadata", Err: fmt.Errorf("torrent %s entered error state", id)}
		}
		if len(torrent.Files) > 0 {
			return torrent, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, &types.EmptyTorrentsError{Provider: name, TorrentID: id}
		case <-ticker.C:
		}
	}
}

// pollUntilDownloaded waits for the torrent to finish processing.
func (r *Resolver) pollUntilDownloaded(ctx context.Context, name types.Provider, mr types.MagnetResolver, id string) (*types.Torrent, error) {
	deadline := time.NewTimer(r.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		torrent, err := mr.GetTorrent(ctx, id)
		if err != nil {
			return nil, err
		}
		switch torrent.Status {
		case "downloaded":
			return torrent, nil
		case "error":
			return nil, &types.ProviderError{Provider: name, Step: "poll", Err: fmt.Errorf("torrent %s entered error state", id)}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, &types.ProviderError{Provider: name, Step: "poll", Err: fmt.Errorf("torrent %s still %s after %s", id, torrent.Status, r.pollTimeout)}
		case <-ticker.C:
		}
	}
}

// cleanup deletes a torrent left behind by a failed resolve. Best effort,
// runs on a fresh context because the resolve's own context may already be
// dead. Cancellation skips cleanup (the torrent may still be wanted), and so
// does an empty torrent: its id is surfaced so the caller can offer the
// delete instead.
func (r *Resolver) cleanup(client types.Client, mr types.MagnetResolver, id string, cause error) {
	if types.IsCancelled(cause) {
		return
	}
	if errors.As(cause, new(*types.EmptyTorrentsError)) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cleanupTimeout)
	defer cancel()
	if err := mr.DeleteTorrent(ctx, id); err != nil {
		logger := client.Logger()
		logger.Warn().Err(err).Msgf("Failed to delete torrent %s after failed resolve", id)
	}
}

// terminal maps the error onto the final state. Clients already classify
// their failures, so the error passes through untouched.
func (r *Resolver) terminal(client types.Client, notify StateFunc, err error) error {
	if types.IsCancelled(err) {
		notify(StateCancelled)
		return err
	}
	notify(StateFailed)
	logger := client.Logger()
	logger.Debug().Err(err).Msgf("%s resolve failed", client.Name())
	return err
}

// pickLink clamps the selection onto the link list, defaulting to the first.
func pickLink(links []string, sel types.Selection) string {
	if sel.FileIndex >= 0 && sel.FileIndex < len(links) {
		return links[sel.FileIndex]
	}
	return links[0]
}

// fileIDs maps a selection onto provider file ids, selecting everything when
// no explicit pick was made.
func fileIDs(files []types.AvailabilityFile, sel types.Selection) []string {
	if sel.FileIndex >= 0 && sel.FileIndex < len(files) {
		return []string{files[sel.FileIndex].ID}
	}
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids
}
