package nvd

import "github.com/m-mizutani/goerr/v2"

// ErrFeedUnavailable indicates the vulnerability feed could not be
// reached or answered with a non-2xx status. The caller decides the retry
// policy; the client never retries by itself.
var ErrFeedUnavailable = goerr.New("vulnerability feed unavailable")

// DefaultBaseURL is the NVD CVE REST API v2.0 endpoint
const DefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// cveResponse is the wire format of one feed page
type cveResponse struct {
	ResultsPerPage  int        `json:"resultsPerPage"`
	StartIndex      int        `json:"startIndex"`
	TotalResults    int        `json:"totalResults"`
	Vulnerabilities []cveEntry `json:"vulnerabilities"`
}

type cveEntry struct {
	CVE cveRecord `json:"cve"`
}

type cveRecord struct {
	ID           string           `json:"id"`
	Published    string           `json:"published"`
	Descriptions []cveDescription `json:"descriptions"`
}

type cveDescription struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

// description returns the english description, falling back to the first
// one present
func (r *cveRecord) description() string {
	for _, d := range r.Descriptions {
		if d.Lang == "en" {
			return d.Value
		}
	}
	if len(r.Descriptions) > 0 {
		return r.Descriptions[0].Value
	}
	return ""
}
