package allanime

// Wire shapes for the AllAnime GraphQL API. The API is GraphQL over GET with
// the query and variables passed as URL parameters.

type searchVariables struct {
	Search          searchInput `json:"search"`
	Limit           int         `json:"limit"`
	Page            int         `json:"page"`
	TranslationType string      `json:"translationType"`
	CountryOrigin   string      `json:"countryOrigin"`
}

type searchInput struct {
	AllowAdult   bool   `json:"allowAdult"`
	AllowUnknown bool   `json:"allowUnknown"`
	Query        string `json:"query"`
}

type searchResponse struct {
	Data struct {
		Shows struct {
			Edges []showEdge `json:"edges"`
		} `json:"shows"`
	} `json:"data"`
}

type showEdge struct {
	ID                string         `json:"_id"`
	Name              string         `json:"name"`
	EnglishName       string         `json:"englishName"`
	Thumbnail         string         `json:"thumbnail"`
	AvailableEpisodes map[string]int `json:"availableEpisodes"`
}

type episodeListResponse struct {
	Data struct {
		Show struct {
			ID                      string              `json:"_id"`
			Name                    string              `json:"name"`
			AvailableEpisodesDetail map[string][]string `json:"availableEpisodesDetail"`
		} `json:"show"`
	} `json:"data"`
}

type episodeResponse struct {
	Data struct {
		Episode struct {
			EpisodeString string       `json:"episodeString"`
			SourceUrls    []episodeSrc `json:"sourceUrls"`
		} `json:"episode"`
	} `json:"data"`
}

type episodeSrc struct {
	SourceURL  string  `json:"sourceUrl"`
	SourceName string  `json:"sourceName"`
	Priority   float64 `json:"priority"`
}

type clockResponse struct {
	Links []struct {
		Link          string `json:"link"`
		ResolutionStr string `json:"resolutionStr"`
		HLS           bool   `json:"hls"`
	} `json:"links"`
}
