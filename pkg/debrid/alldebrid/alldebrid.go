package alldebrid

import (
	"context"
	"fmt"
	gourl "net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/bdashore3/Ferrite/internal/config"
	"github.com/bdashore3/Ferrite/internal/request"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

const (
	// agent is required on every AllDebrid call.
	agent = "Ferrite"
	// availabilityBatchSize caps magnets[] per magnet/instant call.
	availabilityBatchSize = 50
)

type AllDebrid struct {
	name   types.Provider
	host   string
	client *request.Client
	logger zerolog.Logger

	// pin is the pending auth pin from BeginAuth, consumed by CompleteAuth.
	pin string
}

func New(pc config.Provider, log zerolog.Logger) *AllDebrid {
	rl := request.ParseRateLimit(pc.RateLimit)
	client := request.New(
		request.WithRateLimiter(rl),
		request.WithLogger(log),
		request.WithProxy(pc.Proxy),
	)
	return &AllDebrid{
		name:   types.ProviderAllDebrid,
		host:   pc.Host,
		client: client,
		logger: log,
	}
}

func (ad *AllDebrid) Name() types.Provider {
	return ad.name
}

func (ad *AllDebrid) Logger() zerolog.Logger {
	return ad.logger
}

func (ad *AllDebrid) SetToken(token string) {
	if token == "" {
		ad.client.RemoveHeader("Authorization")
		return
	}
	ad.client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", token))
}

func (ad *AllDebrid) url(path string, query gourl.Values) string {
	if query == nil {
		query = gourl.Values{}
	}
	query.Set("agent", agent)
	return fmt.Sprintf("%s%s?%s", ad.host, path, query.Encode())
}

// apiError surfaces AllDebrid's envelope errors, which arrive with HTTP 200.
func (ad *AllDebrid) apiError(step string, e *apiErr) error {
	if e == nil {
		return nil
	}
	if e.Code == "AUTH_BAD_APIKEY" || e.Code == "AUTH_MISSING_APIKEY" || e.Code == "AUTH_BLOCKED" {
		return &types.AuthError{Provider: ad.name, Reason: e.Message}
	}
	return &types.ProviderError{Provider: ad.name, Step: step, Err: fmt.Errorf("%s: %s", e.Code, e.Message)}
}

func (ad *AllDebrid) CheckAvailability(ctx context.Context, magnets []types.Magnet) (map[string]types.AvailabilityRecord, error) {
	result := make(map[string]types.AvailabilityRecord)
	for i := 0; i < len(magnets); i += availabilityBatchSize {
		end := i + availabilityBatchSize
		if end > len(magnets) {
			end = len(magnets)
		}
		query := gourl.Values{}
		for _, m := range magnets[i:end] {
			query.Add("magnets[]", m.Hash)
		}
		resp, err := ad.client.Get(ctx, ad.url("/magnet/instant", query))
		if err != nil {
			return result, types.UpstreamError(ad.name, "check availability", err)
		}
		var data InstantResponse
		if err = json.Unmarshal(resp, &data); err != nil {
			return result, &types.ProviderError{Provider: ad.name, Step: "check availability", Err: err}
		}
		if err = ad.apiError("check availability", data.Error); err != nil {
			return result, err
		}
		for _, m := range data.Data.Magnets {
			if !m.Instant {
				continue
			}
			files := make([]types.AvailabilityFile, 0, len(m.Files))
			for idx, f := range m.Files {
				files = append(files, types.AvailabilityFile{
					ID:   strconv.Itoa(idx),
					Name: f.Name,
					Size: f.Size,
				})
			}
			result[strings.ToLower(m.Hash)] = types.AvailabilityRecord{Files: files}
		}
	}
	return result, nil
}

func (ad *AllDebrid) SubmitMagnet(ctx context.Context, magnet types.Magnet) (string, error) {
	query := gourl.Values{}
	query.Add("magnets[]", magnet.Link)
	resp, err := ad.client.Get(ctx, ad.url("/magnet/upload", query))
	if err != nil {
		return "", types.UpstreamError(ad.name, "upload magnet", err)
	}
	var data UploadResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return "", &types.ProviderError{Provider: ad.name, Step: "upload magnet", Err: err}
	}
	if err = ad.apiError("upload magnet", data.Error); err != nil {
		return "", err
	}
	if len(data.Data.Magnets) == 0 {
		return "", &types.ProviderError{Provider: ad.name, Step: "upload magnet", Err: fmt.Errorf("no magnet in response")}
	}
	id := strconv.Itoa(data.Data.Magnets[0].ID)
	ad.logger.Debug().Msgf("Magnet %s uploaded with id %s", magnet.Hash, id)
	return id, nil
}

func statusFromCode(code int) string {
	switch {
	case code == 4:
		return "downloaded"
	case code >= 0 && code <= 3:
		return "downloading"
	default:
		return "error"
	}
}

// flattenFiles walks the nested file tree depth first, assigning positional
// ids in traversal order so file indices stay stable across calls.
func flattenFiles(files []magnetFile, parentPath string, index *int, out *[]types.AvailabilityFile) {
	for _, f := range files {
		currentPath := f.Name
		if parentPath != "" {
			currentPath = filepath.Join(parentPath, f.Name)
		}
		if len(f.Elements) > 0 {
			flattenFiles(f.Elements, currentPath, index, out)
			continue
		}
		*out = append(*out, types.AvailabilityFile{
			ID:   strconv.Itoa(*index),
			Name: currentPath,
			Size: f.Size,
			Link: f.Link,
		})
		*index++
	}
}

func (ad *AllDebrid) GetTorrent(ctx context.Context, id string) (*types.Torrent, error) {
	query := gourl.Values{}
	query.Set("id", id)
	resp, err := ad.client.Get(ctx, ad.url("/magnet/status", query))
	if err != nil {
		return nil, types.UpstreamError(ad.name, "magnet status", err)
	}
	var data StatusResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return nil, &types.ProviderError{Provider: ad.name, Step: "magnet status", Err: err}
	}
	if err = ad.apiError("magnet status", data.Error); err != nil {
		return nil, err
	}
	m := data.Data.Magnets
	t := &types.Torrent{
		ID:     id,
		Hash:   strings.ToLower(m.Hash),
		Name:   m.Filename,
		Status: statusFromCode(m.StatusCode),
	}
	if m.Size > 0 {
		t.Progress = float64(m.Downloaded) / float64(m.Size) * 100
	}
	if t.Status == "downloaded" {
		index := 0
		files := make([]types.AvailabilityFile, 0, len(m.Files))
		flattenFiles(m.Files, "", &index, &files)
		t.Files = files
		for _, f := range files {
			t.Links = append(t.Links, f.Link)
		}
	}
	return t, nil
}

// Unrestrict unlocks a locked link into a direct download URL.
func (ad *AllDebrid) Unrestrict(ctx context.Context, link string) (string, error) {
	query := gourl.Values{}
	query.Set("link", link)
	resp, err := ad.client.Get(ctx, ad.url("/link/unlock", query))
	if err != nil {
		return "", types.UpstreamError(ad.name, "unlock", err)
	}
	var data UnlockResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return "", &types.ProviderError{Provider: ad.name, Step: "unlock", Err: err}
	}
	if err = ad.apiError("unlock", data.Error); err != nil {
		return "", err
	}
	if data.Data.Link == "" {
		return "", &types.ProviderError{Provider: ad.name, Step: "unlock", Err: fmt.Errorf("no link returned")}
	}
	return data.Data.Link, nil
}

func (ad *AllDebrid) DeleteTorrent(ctx context.Context, id string) error {
	query := gourl.Values{}
	query.Set("id", id)
	resp, err := ad.client.Get(ctx, ad.url("/magnet/delete", query))
	if err != nil {
		return types.UpstreamError(ad.name, "delete magnet", err)
	}
	var data DeleteResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return &types.ProviderError{Provider: ad.name, Step: "delete magnet", Err: err}
	}
	if err = ad.apiError("delete magnet", data.Error); err != nil {
		return err
	}
	ad.logger.Debug().Msgf("Magnet %s deleted", id)
	return nil
}

var (
	_ types.Client         = (*AllDebrid)(nil)
	_ types.MagnetResolver = (*AllDebrid)(nil)
)
