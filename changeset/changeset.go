// Package changeset fetches changeset metadata from the OSM API. It
// is only used to enrich alert reports; filter matching never waits
// for it.
package changeset

import (
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/osmwatch/osmwatch/osm"
)

const DefaultBaseURL = "https://api.openstreetmap.org/api/0.6"

type Client struct {
	BaseURL   string
	UserAgent string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:   baseURL,
		UserAgent: "osmwatch",
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				Dial: (&net.Dialer{
					Timeout: 30 * time.Second,
				}).Dial,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// Changesets resolves a batch of changeset IDs. IDs the API does not
// return (not yet closed out, or invalid) are missing from the result;
// callers re-request them later.
func (c *Client) Changesets(ids []int64) (map[int64]osm.Changeset, error) {
	if len(ids) == 0 {
		return map[int64]osm.Changeset{}, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}
	url := c.BaseURL + "/changesets?changesets=" + strings.Join(strIDs, ",")

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching changesets")
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, errors.Errorf("fetching changesets: unexpected status %s", resp.Status)
	}

	changesets, err := Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	result := make(map[int64]osm.Changeset, len(changesets))
	for _, cs := range changesets {
		result[cs.ID] = cs
	}
	return result, nil
}

// Changeset resolves a single changeset ID.
func (c *Client) Changeset(id int64) (*osm.Changeset, error) {
	result, err := c.Changesets([]int64{id})
	if err != nil {
		return nil, err
	}
	cs, ok := result[id]
	if !ok {
		return nil, errors.Errorf("changeset %d not in response", id)
	}
	return &cs, nil
}

type changesetFile struct {
	XMLName    xml.Name        `xml:"osm"`
	Changesets []changesetElem `xml:"changeset"`
}

type changesetElem struct {
	ID            int64    `xml:"id,attr"`
	CreatedAt     isoTime  `xml:"created_at,attr"`
	ClosedAt      *isoTime `xml:"closed_at,attr"`
	Open          bool     `xml:"open,attr"`
	User          string   `xml:"user,attr"`
	UserID        int64    `xml:"uid,attr"`
	CommentsCount int      `xml:"comments_count,attr"`
	MinLon        *float64 `xml:"min_lon,attr"`
	MinLat        *float64 `xml:"min_lat,attr"`
	MaxLon        *float64 `xml:"max_lon,attr"`
	MaxLat        *float64 `xml:"max_lat,attr"`
	Tags          []tag    `xml:"tag"`
}

type tag struct {
	Key   string `xml:"k,attr"`
	Value string `xml:"v,attr"`
}

type isoTime struct {
	time.Time
}

func (t *isoTime) UnmarshalXMLAttr(attr xml.Attr) error {
	parsed, err := time.Parse(time.RFC3339, attr.Value)
	if err != nil {
		return err
	}
	*t = isoTime{parsed}
	return nil
}

// Parse decodes an OSM API changeset response.
func Parse(r io.Reader) ([]osm.Changeset, error) {
	cf := changesetFile{}
	if err := xml.NewDecoder(r).Decode(&cf); err != nil {
		return nil, errors.Wrap(err, "decoding changeset response")
	}
	changesets := make([]osm.Changeset, 0, len(cf.Changesets))
	for _, el := range cf.Changesets {
		cs := osm.Changeset{
			ID:            el.ID,
			CreatedAt:     el.CreatedAt.Time,
			Open:          el.Open,
			UserID:        el.UserID,
			UserName:      el.User,
			CommentsCount: el.CommentsCount,
			MinLon:        el.MinLon,
			MinLat:        el.MinLat,
			MaxLon:        el.MaxLon,
			MaxLat:        el.MaxLat,
		}
		if el.ClosedAt != nil {
			closed := el.ClosedAt.Time
			cs.ClosedAt = &closed
		}
		if len(el.Tags) > 0 {
			cs.Tags = make(osm.Tags, len(el.Tags))
			for _, t := range el.Tags {
				cs.Tags[t.Key] = t.Value
			}
		}
		changesets = append(changesets, cs)
	}
	return changesets, nil
}
