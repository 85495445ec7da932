package replication

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// CurrentSequence asks the replication service for its newest
// sequence number via its state.yaml.
func CurrentSequence(baseURL string) (int, error) {
	url := stateURL(baseURL)
	resp, err := http.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return 0, errors.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	b := &bytes.Buffer{}
	if _, err := io.Copy(b, resp.Body); err != nil {
		return 0, err
	}
	state, err := parseState(b.Bytes())
	if err != nil {
		return 0, err
	}
	return state.Sequence, nil
}

func stateURL(baseURL string) string {
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] != '/' {
		baseURL += "/"
	}
	return baseURL + "state.yaml"
}

type state struct {
	Time     stateTime `yaml:"last_run"`
	Sequence int       `yaml:"sequence"`
}

type stateTime struct {
	time.Time
}

func (s *stateTime) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ts string
	if err := unmarshal(&ts); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02 15:04:05.999999999 -07:00", ts)
	s.Time = t
	return err
}

func parseState(b []byte) (state, error) {
	s := state{}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return state{}, errors.Wrap(err, "parsing state.yaml")
	}
	return s, nil
}
