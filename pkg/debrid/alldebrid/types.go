package alldebrid

type apiErr struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type magnetFile struct {
	Name     string       `json:"n"`
	Size     int64        `json:"s"`
	Link     string       `json:"l"`
	Elements []magnetFile `json:"e"`
}

type InstantResponse struct {
	Status string `json:"status"`
	Data   struct {
		Magnets []struct {
			Magnet  string `json:"magnet"`
			Hash    string `json:"hash"`
			Instant bool   `json:"instant"`
			Files   []struct {
				Name string `json:"n"`
				Size int64  `json:"s"`
			} `json:"files"`
		} `json:"magnets"`
	} `json:"data"`
	Error *apiErr `json:"error"`
}

type UploadResponse struct {
	Status string `json:"status"`
	Data   struct {
		Magnets []struct {
			Magnet string `json:"magnet"`
			Hash   string `json:"hash"`
			Name   string `json:"name"`
			Size   int64  `json:"size"`
			Ready  bool   `json:"ready"`
			ID     int    `json:"id"`
		} `json:"magnets"`
	} `json:"data"`
	Error *apiErr `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
	Data   struct {
		Magnets struct {
			ID         int          `json:"id"`
			Filename   string       `json:"filename"`
			Size       int64        `json:"size"`
			Hash       string       `json:"hash"`
			Status     string       `json:"status"`
			StatusCode int          `json:"statusCode"`
			Downloaded int64        `json:"downloaded"`
			Seeders    int          `json:"seeders"`
			Files      []magnetFile `json:"files"`
		} `json:"magnets"`
	} `json:"data"`
	Error *apiErr `json:"error"`
}

type UnlockResponse struct {
	Status string `json:"status"`
	Data   struct {
		Link     string `json:"link"`
		Host     string `json:"host"`
		Filename string `json:"filename"`
		Filesize int64  `json:"filesize"`
		ID       string `json:"id"`
	} `json:"data"`
	Error *apiErr `json:"error"`
}

type DeleteResponse struct {
	Status string `json:"status"`
	Data   struct {
		Message string `json:"message"`
	} `json:"data"`
	Error *apiErr `json:"error"`
}

type PinGetResponse struct {
	Status string `json:"status"`
	Data   struct {
		Pin       string `json:"pin"`
		Check     string `json:"check"`
		UserURL   string `json:"user_url"`
		BaseURL   string `json:"base_url"`
		ExpiresIn int    `json:"expires_in"`
	} `json:"data"`
	Error *apiErr `json:"error"`
}

type PinCheckResponse struct {
	Status string `json:"status"`
	Data   struct {
		Activated bool   `json:"activated"`
		ExpiresIn int    `json:"expires_in"`
		Apikey    string `json:"apikey"`
	} `json:"data"`
	Error *apiErr `json:"error"`
}
