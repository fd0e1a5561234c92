package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bdashore3/Ferrite/pkg/debrid/cache"
	"github.com/bdashore3/Ferrite/pkg/debrid/session"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// Engine ties the availability cache, the session manager and the resolver
// together behind the operations the UI layer calls.
type Engine struct {
	cache    *cache.Cache
	sessions *session.Manager
	resolver *Resolver
	super    *Supervisor
	sink     types.StatusSink
	logger   zerolog.Logger
}

func New(c *cache.Cache, sessions *session.Manager, sink types.StatusSink, logger zerolog.Logger) *Engine {
	if sink == nil {
		sink = types.NopSink{}
	}
	resolver := NewResolver(c, logger)
	return &Engine{
		cache:    c,
		sessions: sessions,
		resolver: resolver,
		super:    NewSupervisor(resolver),
		sink:     sink,
		logger:   logger,
	}
}

// Sessions exposes the session manager for the transport layer.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Cache exposes the availability cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// magnets derives the deduplicated magnet set from a result page. Results
// without a recoverable hash are skipped, not errors.
func magnets(results []types.SearchResult) []types.Magnet {
	seen := make(map[string]struct{}, len(results))
	out := make([]types.Magnet, 0, len(results))
	for _, r := range results {
		m, ok := r.Magnet()
		if !ok {
			continue
		}
		if _, dup := seen[m.Hash]; dup {
			continue
		}
		seen[m.Hash] = struct{}{}
		out = append(out, m)
	}
	return out
}

// PopulateAvailability fans the result page out to every enabled provider,
// consulting the cache first so only stale or unknown hashes hit the network.
// One provider failing does not fail the batch; its hashes simply stay
// unknown. The call errors only when every provider failed.
func (e *Engine) PopulateAvailability(ctx context.Context, results []types.SearchResult) error {
	candidates := magnets(results)
	if len(candidates) == 0 {
		return nil
	}
	clients := e.sessions.EnabledClients()
	if len(clients) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	for _, client := range clients {
		client := client
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := client.Name()
			fresh, needsLookup := e.cache.Partition(name, candidates)
			if len(needsLookup) == 0 {
				e.logger.Debug().Msgf("%s: all %d hashes cached", name, len(fresh))
				return
			}
			records, err := client.CheckAvailability(ctx, needsLookup)
			// Merge whatever came back before deciding about the error: a
			// batch can fail halfway with earlier chunks already answered.
			if len(records) > 0 {
				e.cache.MergeBatch(name, records)
			}
			if err != nil {
				if types.IsCancelled(err) {
					mu.Lock()
					failures = append(failures, err)
					mu.Unlock()
					return
				}
				e.logger.Warn().Err(err).Msgf("%s availability lookup failed", name)
				e.sink.Report(fmt.Sprintf("%s availability check failed", name), types.SeverityWarn)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return
			}
			e.logger.Debug().Msgf("%s: %d/%d hashes cached", name, len(records), len(needsLookup))
		}()
	}
	wg.Wait()

	if len(failures) == len(clients) {
		return errors.Join(failures...)
	}
	return nil
}

// MatchStatus reports the availability of one result on one provider from the
// cache alone. Safe to call per row while rendering; never touches the
// network.
func (e *Engine) MatchStatus(result types.SearchResult, provider types.Provider) types.MatchStatus {
	m, ok := result.Magnet()
	if !ok {
		return types.MatchNone
	}
	rec, ok := e.cache.Get(provider, m.Hash)
	if !ok {
		return types.MatchNone
	}
	return rec.Status()
}

// Resolve turns a search result into a final download URL on the given
// provider (or the active one when provider is empty). Starting a resolve
// cancels any resolve still in flight.
func (e *Engine) Resolve(ctx context.Context, provider types.Provider, result types.SearchResult, sel types.Selection, onState StateFunc) (*types.ResolvedDownload, error) {
	if provider == "" {
		provider = e.sessions.Active()
		if provider == "" {
			return nil, &types.InvalidInputError{Reason: "no active provider"}
		}
	}
	client, err := e.sessions.Client(provider)
	if err != nil {
		return nil, err
	}
	magnet, ok := result.Magnet()
	if !ok {
		return nil, &types.InvalidInputError{Reason: fmt.Sprintf("result %q has no usable magnet", result.Title)}
	}
	return e.super.Resolve(ctx, client, magnet, sel, onState)
}

// CancelResolve aborts the in-flight resolve, if any.
func (e *Engine) CancelResolve() {
	e.super.Cancel()
}

// DeleteTorrent removes a stuck torrent from a provider's account. Offered
// after an EmptyTorrentsError so users can clear the dead entry.
func (e *Engine) DeleteTorrent(ctx context.Context, provider types.Provider, torrentID string) error {
	client, err := e.sessions.Client(provider)
	if err != nil {
		return err
	}
	mr, ok := client.(types.MagnetResolver)
	if !ok {
		return &types.InvalidInputError{Reason: fmt.Sprintf("%s does not manage torrents", provider)}
	}
	return mr.DeleteTorrent(ctx, torrentID)
}
