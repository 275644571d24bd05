package models

// PaperRecord is a single PubMed article assembled from esummary metadata
// and an efetch abstract.
type PaperRecord struct {
	Title           string `json:"title"`
	Authors         string `json:"authors"`
	Journal         string `json:"journal"`
	PublicationDate string `json:"publicationDate"`
	DOI             string `json:"doi"`
	PMID            string `json:"pmid"`
	Abstract        string `json:"abstract"`
	URL             string `json:"url"`
}

// SearchResult is the payload returned to the model for both capabilities.
type SearchResult struct {
	MeshTerms    string        `json:"meshTerms"`
	SearchURL    string        `json:"searchUrl"`
	TotalResults int           `json:"totalResults"`
	Papers       []PaperRecord `json:"papers"`
}
