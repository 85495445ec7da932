package config

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/osmwatch/osmwatch/filter"
	"github.com/osmwatch/osmwatch/osm"
)

func TestConfigDecode(t *testing.T) {
	doc := `{
  "replication_url": "https://example.org/replication/minute/",
  "replication_interval": "30s",
  "sequence": 6460395,
  "watchers": [
    {
      "user": "iandees",
      "filters": [
        {"type": "user_id_changed", "uid": 4732},
        {"type": "user_id_made_change", "uid": 4732},
        {"type": "new_user"},
        {"type": "object_changed", "object_type": "way", "id": 123},
        {"type": "tag_value_in_list", "key": "name", "values": ["stupid", "dumb"]},
        {"type": "bbox", "bbox": [-94.240723, 44.486868, -92.164307, 45.323342], "name": "Twin Cities"}
      ]
    }
  ]
}`
	conf := Config{}
	if err := json.Unmarshal([]byte(doc), &conf); err != nil {
		t.Fatal(err)
	}
	if conf.ReplicationInterval.Duration != 30*time.Second {
		t.Error("unexpected interval", conf.ReplicationInterval)
	}
	if conf.Sequence != 6460395 {
		t.Error("unexpected sequence", conf.Sequence)
	}
	if len(conf.Watchers) != 1 {
		t.Fatal("expected 1 watcher")
	}

	interest, err := conf.Watchers[0].Build()
	if err != nil {
		t.Fatal(err)
	}
	if interest.UserID != "iandees" {
		t.Error("unexpected user", interest.UserID)
	}
	if len(interest.Filters) != 6 {
		t.Fatal("expected 6 filters, got", len(interest.Filters))
	}
	if f, ok := interest.Filters[3].(*filter.ObjectChanged); !ok || f.Type != osm.WayType || f.ID != 123 {
		t.Error("object_changed not built correctly", interest.Filters[3])
	}
	if got := interest.Filters[5].Explanation(); got != `Change in shape "Twin Cities"` {
		t.Error("unexpected bbox explanation", got)
	}
}

func TestFilterDefErrors(t *testing.T) {
	bad := []FilterDef{
		{Type: "frobnicate"},
		{Type: "object_changed", ObjectType: "teapot", ObjectID: 1},
		{Type: "tag_value_in_list", Key: "name"},
		{Type: "bbox", BBox: []float64{1, 2, 3}},
		{Type: "shape"},
	}
	for _, def := range bad {
		if _, err := def.Build(); err == nil {
			t.Errorf("expected error for %+v", def)
		}
	}
}

func TestLoadShape(t *testing.T) {
	dir, err := ioutil.TempDir("", "osmwatch")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	doc := `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "Hayward"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-91.76, 45.85], [-91.76, 46.26], [-90.72, 46.26], [-90.72, 45.85], [-91.76, 45.85]]]
      }
    }
  ]
}`
	path := filepath.Join(dir, "hayward.geojson")
	if err := ioutil.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := FilterDef{Type: "shape", GeoJSON: path}.Build()
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Explanation(); got != `Change in shape "Hayward"` {
		t.Error("feature name should become the shape name", got)
	}

	shape, ok := f.(*filter.ChangeInShape)
	if !ok {
		t.Fatal("expected shape filter")
	}
	if len(shape.Shape) != 1 || len(shape.Shape[0]) != 5 {
		t.Error("unexpected ring", shape.Shape)
	}
}
