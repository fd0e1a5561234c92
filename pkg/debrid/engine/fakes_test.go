package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

type memStore struct {
	mu     sync.Mutex
	tokens map[types.Provider]string
}

func newMemStore(seed map[types.Provider]string) *memStore {
	if seed == nil {
		seed = make(map[types.Provider]string)
	}
	return &memStore{tokens: seed}
}

func (s *memStore) Get(p types.Provider) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[p], nil
}

func (s *memStore) Set(p types.Provider, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[p] = token
	return nil
}

func (s *memStore) Clear(p types.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, p)
	return nil
}

// fakeClient is the minimal types.Client with scripted availability answers.
type fakeClient struct {
	name types.Provider

	mu         sync.Mutex
	checkCalls int
	checked    [][]types.Magnet
	avail      map[string]types.AvailabilityRecord
	checkErr   error
	token      string
}

func newFakeClient(name types.Provider) *fakeClient {
	return &fakeClient{
		name:  name,
		avail: make(map[string]types.AvailabilityRecord),
	}
}

func (f *fakeClient) Name() types.Provider           { return f.name }
func (f *fakeClient) Logger() zerolog.Logger         { return zerolog.Nop() }
func (f *fakeClient) SetToken(token string)          { f.token = token }
func (f *fakeClient) RequiresManualRevocation() bool { return false }

func (f *fakeClient) BeginAuth(ctx context.Context) (*types.AuthPrompt, error) {
	return &types.AuthPrompt{VerificationURL: "https://example.com/verify", PollCode: "poll"}, nil
}

func (f *fakeClient) CompleteAuth(ctx context.Context, code string) (string, error) {
	return "token-" + string(f.name), nil
}

func (f *fakeClient) CheckAvailability(ctx context.Context, magnets []types.Magnet) (map[string]types.AvailabilityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	f.checked = append(f.checked, magnets)
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	out := make(map[string]types.AvailabilityRecord)
	for _, m := range magnets {
		if rec, ok := f.avail[m.Hash]; ok {
			out[m.Hash] = rec
		}
	}
	return out, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls
}

// fakeResolverClient scripts the full submit/select/poll/unrestrict protocol.
type fakeResolverClient struct {
	*fakeClient

	submitID    string
	submitErr   error
	submitCalls int

	// torrents is consumed one per GetTorrent call; the last entry repeats.
	torrents    []*types.Torrent
	torrentErr  error
	getCalls    int

	selected [][]string

	unrestricted []string
	unrestrictBy func(link string) (string, error)

	deleted []string
}

func (f *fakeResolverClient) SubmitMagnet(ctx context.Context, magnet types.Magnet) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitID, nil
}

func (f *fakeResolverClient) GetTorrent(ctx context.Context, id string) (*types.Torrent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.torrentErr != nil {
		return nil, f.torrentErr
	}
	idx := f.getCalls
	if idx >= len(f.torrents) {
		idx = len(f.torrents) - 1
	}
	f.getCalls++
	return f.torrents[idx], nil
}

func (f *fakeResolverClient) SelectFiles(ctx context.Context, torrentID string, fileIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, fileIDs)
	return nil
}

func (f *fakeResolverClient) Unrestrict(ctx context.Context, link string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unrestricted = append(f.unrestricted, link)
	if f.unrestrictBy != nil {
		return f.unrestrictBy(link)
	}
	return "https://download.example.com/" + link, nil
}

func (f *fakeResolverClient) DeleteTorrent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

// fakeReuseClient adds the account-listing capability.
type fakeReuseClient struct {
	*fakeResolverClient

	accountTorrents []*types.Torrent
	downloads       []types.Download
	listErr         error
}

func (f *fakeReuseClient) GetTorrents(ctx context.Context) ([]*types.Torrent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.accountTorrents, nil
}

func (f *fakeReuseClient) GetDownloads(ctx context.Context) ([]types.Download, error) {
	return f.downloads, nil
}

// fakeLocalClient resolves purely from availability records.
type fakeLocalClient struct {
	*fakeClient
}

func (f *fakeLocalClient) ResolveLocal(record types.AvailabilityRecord, fileIndex int) (string, error) {
	if len(record.Files) == 0 {
		return "", &types.EmptyTorrentsError{Provider: f.name, TorrentID: record.Hash}
	}
	if fileIndex < 0 || fileIndex >= len(record.Files) {
		fileIndex = 0
	}
	if record.Files[fileIndex].Link == "" {
		return "", fmt.Errorf("file %d has no link", fileIndex)
	}
	return record.Files[fileIndex].Link, nil
}
