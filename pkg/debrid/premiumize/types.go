package premiumize

type DirectDownloadResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Location string `json:"location,omitempty"`
	Filename string `json:"filename,omitempty"`
	Filesize int64  `json:"filesize,omitempty"`
	Content  []struct {
		Path            string `json:"path"`
		Size            int64  `json:"size"`
		Link            string `json:"link"`
		StreamLink      string `json:"stream_link"`
		TranscodeStatus string `json:"transcode_status"`
	} `json:"content"`
}
