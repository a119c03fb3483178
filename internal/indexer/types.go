package indexer

// Page is the raw response for one fetched URL
type Page struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"-"`
}
