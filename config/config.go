// Package config holds the static per-user filter configuration and
// the run options of the watch command.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/osmwatch/osmwatch/filter"
	"github.com/osmwatch/osmwatch/osm"
)

const defaultReplicationURL = "https://adiffs.osmcha.org/replication/minute/"
const defaultChangesetAPI = "https://api.openstreetmap.org/api/0.6"

type Config struct {
	ReplicationURL      string    `json:"replication_url"`
	ReplicationInterval Duration  `json:"replication_interval"`
	ChangesetAPI        string    `json:"changeset_api"`
	DiffDir             string    `json:"diffdir"`
	Sequence            int       `json:"sequence"`
	Watchers            []Watcher `json:"watchers"`
}

// A Watcher is one user and the filters they are interested in.
type Watcher struct {
	User    string      `json:"user"`
	Filters []FilterDef `json:"filters"`
}

// A FilterDef is the declarative form of one filter. Type selects the
// filter, the other fields are its parameters.
type FilterDef struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"uid"`
	ObjectType string    `json:"object_type"`
	ObjectID   int64     `json:"id"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	Values     []string  `json:"values"`
	BBox       []float64 `json:"bbox"`
	GeoJSON    string    `json:"geojson"`
	Name       string    `json:"name"`
}

// Build constructs the filter the definition describes.
func (d FilterDef) Build() (filter.Filter, error) {
	switch d.Type {
	case "user_id_changed":
		return &filter.UserIDChanged{UserID: d.UserID}, nil
	case "user_id_made_change":
		return &filter.UserIDMadeChange{UserID: d.UserID}, nil
	case "new_user":
		// each definition owns its seen set, alive for the whole run
		return filter.NewNewUser(nil), nil
	case "object_changed":
		t, ok := osm.TypeValues[d.ObjectType]
		if !ok {
			return nil, errors.Errorf("object_changed: invalid object type %q", d.ObjectType)
		}
		return &filter.ObjectChanged{Type: t, ID: d.ObjectID}, nil
	case "tag_value_in_list":
		if d.Key == "" || len(d.Values) == 0 {
			return nil, errors.New("tag_value_in_list: key and values required")
		}
		return &filter.TagValueInList{Key: d.Key, Values: d.Values}, nil
	case "object_with_tag_changed":
		if d.Key == "" {
			return nil, errors.New("object_with_tag_changed: key required")
		}
		return &filter.ObjectWithTagChanged{Key: d.Key, Value: d.Value}, nil
	case "bbox":
		if len(d.BBox) != 4 {
			return nil, errors.New("bbox: want [minlon, minlat, maxlon, maxlat]")
		}
		return filter.NewChangeInBoundingBox(d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3], d.Name), nil
	case "shape":
		shape, name, err := loadShape(d.GeoJSON)
		if err != nil {
			return nil, err
		}
		if d.Name != "" {
			name = d.Name
		}
		return &filter.ChangeInShape{Shape: shape, Name: name}, nil
	}
	return nil, errors.Errorf("unknown filter type %q", d.Type)
}

// Build constructs the watcher's interest with all its filters.
func (w Watcher) Build() (filter.UserInterest, error) {
	interest := filter.UserInterest{UserID: w.User}
	for _, def := range w.Filters {
		f, err := def.Build()
		if err != nil {
			return interest, errors.Wrapf(err, "filter for %s", w.User)
		}
		interest.Filters = append(interest.Filters, f)
	}
	return interest, nil
}

// loadShape reads a polygon from a GeoJSON file. FeatureCollections,
// single Features and bare geometries are accepted; the first polygon
// wins. The feature's name property is used when the filter has none.
func loadShape(path string) (orb.Polygon, string, error) {
	if path == "" {
		return nil, "", errors.New("shape: geojson file required")
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	if fc, err := geojson.UnmarshalFeatureCollection(b); err == nil {
		for _, feat := range fc.Features {
			if poly, ok := feat.Geometry.(orb.Polygon); ok {
				name, _ := feat.Properties["name"].(string)
				return poly, name, nil
			}
		}
		return nil, "", errors.Errorf("no polygon feature in %s", path)
	}
	if feat, err := geojson.UnmarshalFeature(b); err == nil {
		if poly, ok := feat.Geometry.(orb.Polygon); ok {
			name, _ := feat.Properties["name"].(string)
			return poly, name, nil
		}
		return nil, "", errors.Errorf("feature in %s is not a polygon", path)
	}
	g, err := geojson.UnmarshalGeometry(b)
	if err != nil {
		return nil, "", errors.Wrapf(err, "parsing %s", path)
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, "", errors.Errorf("geometry in %s is not a polygon", path)
	}
	return poly, "", nil
}

// Duration is a time.Duration that unmarshals from "30s" style JSON
// strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

type RunOptions struct {
	Config
	Quiet bool
}

var RunFlags = flag.NewFlagSet("run", flag.ExitOnError)

var runOpts = struct {
	configFile string
	url        string
	diffDir    string
	seqn       int
	interval   time.Duration
	quiet      bool
}{}

func init() {
	RunFlags.Usage = UsageRun
	RunFlags.StringVar(&runOpts.configFile, "config", "", "config (json)")
	RunFlags.StringVar(&runOpts.url, "url", "", "replication base url")
	RunFlags.StringVar(&runOpts.diffDir, "diffdir", "", "read .adiff files from directory instead of url")
	RunFlags.IntVar(&runOpts.seqn, "seqn", 0, "start sequence number (0 = current)")
	RunFlags.DurationVar(&runOpts.interval, "interval", time.Minute, "replication interval")
	RunFlags.BoolVar(&runOpts.quiet, "quiet", false, "quiet log output")
}

func UsageRun() {
	fmt.Fprintf(os.Stderr, "Usage: %s %s [args]\n\n", os.Args[0], "run")
	RunFlags.PrintDefaults()
	os.Exit(2)
}

// ParseRun parses the run command's flags and config file. Flags that
// were set on the command line win over the config file.
func ParseRun(args []string) RunOptions {
	if err := RunFlags.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	conf := Config{
		ReplicationURL:      defaultReplicationURL,
		ReplicationInterval: Duration{time.Minute},
		ChangesetAPI:        defaultChangesetAPI,
	}
	if runOpts.configFile != "" {
		f, err := os.Open(runOpts.configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		err = json.NewDecoder(f).Decode(&conf)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "parsing %s: %v\n", runOpts.configFile, err)
			os.Exit(2)
		}
	}

	RunFlags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			conf.ReplicationURL = runOpts.url
		case "diffdir":
			conf.DiffDir = runOpts.diffDir
		case "seqn":
			conf.Sequence = runOpts.seqn
		case "interval":
			conf.ReplicationInterval = Duration{runOpts.interval}
		}
	})

	opts := RunOptions{Config: conf, Quiet: runOpts.quiet}
	if errs := opts.check(); len(errs) != 0 {
		reportErrors(errs)
		UsageRun()
	}
	return opts
}

func (o *RunOptions) check() []error {
	errs := []error{}
	if len(o.Watchers) == 0 {
		errs = append(errs, errors.New("no watchers configured"))
	}
	if o.ReplicationURL == "" && o.DiffDir == "" {
		errs = append(errs, errors.New("missing replication url or diffdir"))
	}
	if o.ReplicationInterval.Duration <= 0 {
		errs = append(errs, errors.New("replication interval must be positive"))
	}
	return errs
}

func reportErrors(errs []error) {
	fmt.Println("errors in config/options:")
	for _, err := range errs {
		fmt.Printf("\t%s\n", err)
	}
	os.Exit(1)
}
