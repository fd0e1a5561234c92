package realdebrid

import (
	"context"
	"fmt"
	"net/http"
	gourl "net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"github.com/bdashore3/Ferrite/internal/config"
	"github.com/bdashore3/Ferrite/internal/request"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// availabilityBatchSize is the documented per-call ceiling for the
// instantAvailability endpoint.
const availabilityBatchSize = 200

type RealDebrid struct {
	name     types.Provider
	host     string
	authHost string
	clientID string
	client   *request.Client
	logger   zerolog.Logger

	authInterval time.Duration
	authDeadline time.Time
}

func New(pc config.Provider, log zerolog.Logger) *RealDebrid {
	rl := request.ParseRateLimit(pc.RateLimit)
	client := request.New(
		request.WithRateLimiter(rl),
		request.WithLogger(log),
		request.WithProxy(pc.Proxy),
	)
	return &RealDebrid{
		name:     types.ProviderRealDebrid,
		host:     pc.Host,
		authHost: pc.AuthHost,
		clientID: pc.ClientID,
		client:   client,
		logger:   log,
	}
}

func (r *RealDebrid) Name() types.Provider {
	return r.name
}

func (r *RealDebrid) Logger() zerolog.Logger {
	return r.logger
}

func (r *RealDebrid) SetToken(token string) {
	if token == "" {
		r.client.RemoveHeader("Authorization")
		return
	}
	r.client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", token))
}

// CheckAvailability queries instantAvailability in batches. The response
// shape is loose (hash -> hoster -> variant maps, with empty arrays standing
// in for empty objects), so it is walked with fastjson instead of structs.
func (r *RealDebrid) CheckAvailability(ctx context.Context, magnets []types.Magnet) (map[string]types.AvailabilityRecord, error) {
	result := make(map[string]types.AvailabilityRecord)
	if len(magnets) == 0 {
		return result, nil
	}

	var parser fastjson.Parser
	for i := 0; i < len(magnets); i += availabilityBatchSize {
		end := i + availabilityBatchSize
		if end > len(magnets) {
			end = len(magnets)
		}
		batch := magnets[i:end]

		hashes := make([]string, 0, len(batch))
		for _, m := range batch {
			if m.Hash != "" {
				hashes = append(hashes, m.Hash)
			}
		}
		if len(hashes) == 0 {
			continue
		}

		url := fmt.Sprintf("%s/torrents/instantAvailability/%s", r.host, strings.Join(hashes, "/"))
		resp, err := r.client.Get(ctx, url)
		if err != nil {
			return result, types.UpstreamError(r.name, "check availability", err)
		}

		root, err := parser.ParseBytes(resp)
		if err != nil {
			return result, &types.ProviderError{Provider: r.name, Step: "check availability", Err: err}
		}
		// Some responses wrap the object in a single-element array.
		if root.Type() == fastjson.TypeArray {
			arr := root.GetArray()
			if len(arr) == 0 {
				continue
			}
			root = arr[0]
		}

		for _, h := range hashes {
			files := parseVariants(root.Get(strings.ToLower(h)))
			if files == nil {
				continue
			}
			result[h] = types.AvailabilityRecord{Files: files}
		}
	}
	return result, nil
}

// parseVariants flattens the "rd" variant sets for one hash into a deduped,
// id-ordered file listing. Returns nil when the hash is not cached.
func parseVariants(hosters *fastjson.Value) []types.AvailabilityFile {
	if hosters == nil {
		return nil
	}
	variants := hosters.GetArray("rd")
	if len(variants) == 0 {
		return nil
	}

	seen := make(map[string]types.AvailabilityFile)
	for _, variant := range variants {
		obj := variant.GetObject()
		if obj == nil {
			continue
		}
		obj.Visit(func(k []byte, v *fastjson.Value) {
			id := string(k)
			if _, ok := seen[id]; ok {
				return
			}
			seen[id] = types.AvailabilityFile{
				ID:   id,
				Name: string(v.GetStringBytes("filename")),
				Size: v.GetInt64("filesize"),
			}
		})
	}

	files := make([]types.AvailabilityFile, 0, len(seen))
	for _, f := range seen {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		return fileIDLess(files[i].ID, files[j].ID)
	})
	return files
}

func fileIDLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func (r *RealDebrid) SubmitMagnet(ctx context.Context, magnet types.Magnet) (string, error) {
	url := fmt.Sprintf("%s/torrents/addMagnet", r.host)
	payload := gourl.Values{
		"magnet": {magnet.Link},
	}
	resp, err := r.client.PostForm(ctx, url, payload)
	if err != nil {
		return "", types.UpstreamError(r.name, "add magnet", err)
	}
	var data AddMagnetResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return "", &types.ProviderError{Provider: r.name, Step: "add magnet", Err: err}
	}
	if data.ID == "" {
		return "", &types.ProviderError{Provider: r.name, Step: "add magnet", Err: fmt.Errorf("empty torrent id")}
	}
	r.logger.Debug().Msgf("Magnet %s added with id %s", magnet.Hash, data.ID)
	return data.ID, nil
}

func (r *RealDebrid) GetTorrent(ctx context.Context, id string) (*types.Torrent, error) {
	url := fmt.Sprintf("%s/torrents/info/%s", r.host, id)
	resp, err := r.client.Get(ctx, url)
	if err != nil {
		return nil, types.UpstreamError(r.name, "torrent info", err)
	}
	var data TorrentInfo
	if err = json.Unmarshal(resp, &data); err != nil {
		return nil, &types.ProviderError{Provider: r.name, Step: "torrent info", Err: err}
	}
	return torrentFromInfo(&data), nil
}

// torrentFromInfo maps the wire shape onto the shared torrent model. Links
// are handed out in selection order, so the nth selected file gets the nth
// link.
func torrentFromInfo(data *TorrentInfo) *types.Torrent {
	t := &types.Torrent{
		ID:       data.ID,
		Hash:     strings.ToLower(data.Hash),
		Name:     data.Filename,
		Status:   data.Status,
		Progress: data.Progress,
		Links:    data.Links,
	}
	idx := 0
	for _, f := range data.Files {
		file := types.AvailabilityFile{
			ID:   strconv.Itoa(f.ID),
			Name: f.Path,
			Size: f.Bytes,
		}
		if f.Selected == 1 {
			if idx < len(data.Links) {
				file.Link = data.Links[idx]
			}
			idx++
		}
		t.Files = append(t.Files, file)
	}
	return t
}

func (r *RealDebrid) SelectFiles(ctx context.Context, torrentID string, fileIDs []string) error {
	url := fmt.Sprintf("%s/torrents/selectFiles/%s", r.host, torrentID)
	payload := gourl.Values{
		"files": {strings.Join(fileIDs, ",")},
	}
	if _, err := r.client.PostForm(ctx, url, payload); err != nil {
		return types.UpstreamError(r.name, "select files", err)
	}
	return nil
}

func (r *RealDebrid) Unrestrict(ctx context.Context, link string) (string, error) {
	url := fmt.Sprintf("%s/unrestrict/link", r.host)
	payload := gourl.Values{
		"link": {link},
	}
	resp, err := r.client.PostForm(ctx, url, payload)
	if err != nil {
		return "", types.UpstreamError(r.name, "unrestrict", err)
	}
	var data UnrestrictResponse
	if err = json.Unmarshal(resp, &data); err != nil {
		return "", &types.ProviderError{Provider: r.name, Step: "unrestrict", Err: err}
	}
	if data.Download == "" {
		return "", &types.ProviderError{Provider: r.name, Step: "unrestrict", Err: fmt.Errorf("no download link returned")}
	}
	return data.Download, nil
}

func (r *RealDebrid) DeleteTorrent(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/torrents/delete/%s", r.host, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	if _, err = r.client.MakeRequest(req); err != nil {
		return types.UpstreamError(r.name, "delete torrent", err)
	}
	r.logger.Debug().Msgf("Torrent %s deleted", id)
	return nil
}

func (r *RealDebrid) GetTorrents(ctx context.Context) ([]*types.Torrent, error) {
	url := fmt.Sprintf("%s/torrents?limit=%d", r.host, 100)
	resp, err := r.client.Get(ctx, url)
	if err != nil {
		return nil, types.UpstreamError(r.name, "list torrents", err)
	}
	var data []TorrentListEntry
	if err = json.Unmarshal(resp, &data); err != nil {
		return nil, &types.ProviderError{Provider: r.name, Step: "list torrents", Err: err}
	}
	torrents := make([]*types.Torrent, 0, len(data))
	for _, t := range data {
		torrents = append(torrents, &types.Torrent{
			ID:       t.ID,
			Hash:     strings.ToLower(t.Hash),
			Name:     t.Filename,
			Status:   t.Status,
			Progress: t.Progress,
			Links:    t.Links,
		})
	}
	return torrents, nil
}

func (r *RealDebrid) GetDownloads(ctx context.Context) ([]types.Download, error) {
	url := fmt.Sprintf("%s/downloads?limit=%d", r.host, 100)
	resp, err := r.client.Get(ctx, url)
	if err != nil {
		return nil, types.UpstreamError(r.name, "list downloads", err)
	}
	var data []DownloadListEntry
	if err = json.Unmarshal(resp, &data); err != nil {
		return nil, &types.ProviderError{Provider: r.name, Step: "list downloads", Err: err}
	}
	downloads := make([]types.Download, 0, len(data))
	for _, d := range data {
		downloads = append(downloads, types.Download{
			ID:       d.ID,
			Filename: d.Filename,
			Link:     d.Link,
			URL:      d.Download,
		})
	}
	return downloads, nil
}

var (
	_ types.Client         = (*RealDebrid)(nil)
	_ types.MagnetResolver = (*RealDebrid)(nil)
	_ types.FileSelector   = (*RealDebrid)(nil)
	_ types.DownloadReuser = (*RealDebrid)(nil)
)
