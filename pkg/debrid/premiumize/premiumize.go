package premiumize

import (
	"context"
	"fmt"
	gourl "net/url"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bdashore3/Ferrite/internal/config"
	"github.com/bdashore3/Ferrite/internal/request"
	"github.com/bdashore3/Ferrite/internal/utils"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// ddlChunkSize bounds how many direct-download probes run per wave.
// Premiumize has no instant-availability endpoint, so availability is
// approximated by directdl requests issued in fixed chunks of 10.
const ddlChunkSize = 10

type Premiumize struct {
	name     types.Provider
	host     string
	authHost string
	clientID string
	client   *request.Client
	logger   zerolog.Logger
}

func New(pc config.Provider, log zerolog.Logger) *Premiumize {
	rl := request.ParseRateLimit(pc.RateLimit)
	client := request.New(
		request.WithRateLimiter(rl),
		request.WithLogger(log),
		request.WithProxy(pc.Proxy),
	)
	return &Premiumize{
		name:     types.ProviderPremiumize,
		host:     pc.Host,
		authHost: pc.AuthHost,
		clientID: pc.ClientID,
		client:   client,
		logger:   log,
	}
}

func (p *Premiumize) Name() types.Provider {
	return p.name
}

func (p *Premiumize) Logger() zerolog.Logger {
	return p.logger
}

func (p *Premiumize) SetToken(token string) {
	if token == "" {
		p.client.RemoveHeader("Authorization")
		return
	}
	p.client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", token))
}

// CheckAvailability probes each magnet with a directdl request. A successful
// response means the content is fully cached and already carries final URLs,
// which are kept on the record so resolution is a local lookup.
func (p *Premiumize) CheckAvailability(ctx context.Context, magnets []types.Magnet) (map[string]types.AvailabilityRecord, error) {
	result := make(map[string]types.AvailabilityRecord)
	var mu sync.Mutex

	for _, chunk := range utils.Chunks(magnets, ddlChunkSize) {
		g, gctx := errgroup.WithContext(ctx)
		for _, m := range chunk {
			m := m
			g.Go(func() error {
				files, err := p.directDownload(gctx, m.Link)
				if err != nil {
					// A failed probe is a cache miss, not a batch failure,
					// unless the whole operation is being torn down.
					if types.IsCancelled(err) {
						return err
					}
					p.logger.Debug().Msgf("DDL probe miss for %s: %v", m.Hash, err)
					return nil
				}
				mu.Lock()
				result[m.Hash] = types.AvailabilityRecord{Files: files}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (p *Premiumize) directDownload(ctx context.Context, src string) ([]types.AvailabilityFile, error) {
	payload := gourl.Values{
		"src": {src},
	}
	resp, err := p.client.PostForm(ctx, fmt.Sprintf("%s/transfer/directdl", p.host), payload)
	if err != nil {
		return nil, types.UpstreamError(p.name, "directdl", err)
	}
	var data DirectDownloadResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return nil, &types.ProviderError{Provider: p.name, Step: "directdl", Err: err}
	}
	if data.Status != "success" || len(data.Content) == 0 {
		return nil, &types.ProviderError{Provider: p.name, Step: "directdl", Err: fmt.Errorf("not cached: %s", data.Message)}
	}

	files := make([]types.AvailabilityFile, 0, len(data.Content))
	for i, c := range data.Content {
		link := c.StreamLink
		if link == "" {
			link = c.Link
		}
		files = append(files, types.AvailabilityFile{
			ID:   strconv.Itoa(i),
			Name: c.Path,
			Size: c.Size,
			Link: link,
		})
	}
	return files, nil
}

// ResolveLocal picks a final URL out of an availability record. No network:
// the directdl probe already produced the URLs. Falls back to the first file
// when no explicit selection was made.
func (p *Premiumize) ResolveLocal(record types.AvailabilityRecord, fileIndex int) (string, error) {
	if len(record.Files) == 0 {
		return "", &types.EmptyTorrentsError{Provider: p.name, TorrentID: record.Hash}
	}
	if fileIndex < 0 || fileIndex >= len(record.Files) {
		fileIndex = 0
	}
	link := record.Files[fileIndex].Link
	if link == "" {
		return "", &types.ProviderError{Provider: p.name, Step: "resolve", Err: fmt.Errorf("file %d has no link", fileIndex)}
	}
	return link, nil
}

var (
	_ types.Client        = (*Premiumize)(nil)
	_ types.LocalResolver = (*Premiumize)(nil)
)
