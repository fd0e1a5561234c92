package realdebrid

type AddMagnetResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

type TorrentInfo struct {
	ID               string  `json:"id"`
	Filename         string  `json:"filename"`
	OriginalFilename string  `json:"original_filename"`
	Hash             string  `json:"hash"`
	Bytes            int64   `json:"bytes"`
	Progress         float64 `json:"progress"`
	Status           string  `json:"status"`
	Added            string  `json:"added"`
	Files            []struct {
		ID       int    `json:"id"`
		Path     string `json:"path"`
		Bytes    int64  `json:"bytes"`
		Selected int    `json:"selected"`
	} `json:"files"`
	Links   []string `json:"links"`
	Ended   string   `json:"ended,omitempty"`
	Speed   int      `json:"speed,omitempty"`
	Seeders int      `json:"seeders,omitempty"`
}

type TorrentListEntry struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Hash     string   `json:"hash"`
	Bytes    int64    `json:"bytes"`
	Progress float64  `json:"progress"`
	Status   string   `json:"status"`
	Links    []string `json:"links"`
}

type DownloadListEntry struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Link     string `json:"link"`
	Download string `json:"download"`
	Filesize int64  `json:"filesize"`
}

type UnrestrictResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	Filesize   int64  `json:"filesize"`
	Link       string `json:"link"`
	Host       string `json:"host"`
	Download   string `json:"download"`
	Streamable int    `json:"streamable"`
}

type DeviceCodeResponse struct {
	DeviceCode            string `json:"device_code"`
	UserCode              string `json:"user_code"`
	Interval              int    `json:"interval"`
	ExpiresIn             int    `json:"expires_in"`
	VerificationURL       string `json:"verification_url"`
	DirectVerificationURL string `json:"direct_verification_url,omitempty"`
}

type DeviceCredentialsResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
