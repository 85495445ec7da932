// Package adiff decodes augmented diff documents into osm.Diff
// containers. Decoding is pure, it performs no I/O besides reading the
// supplied stream.
package adiff

import (
	"compress/gzip"
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/osmwatch/osmwatch/log"
	"github.com/osmwatch/osmwatch/osm"
)

// ErrMalformedDocument is returned when the root element is missing
// the version or generator attribute.
var ErrMalformedDocument = errors.New("adiff: missing version or generator on root element")

// Decode reads one augmented diff document and classifies its actions
// into creates, modifies and deletes by their declared type. Actions
// with an unknown type and old/new payloads that are not a known OSM
// primitive are dropped with a warning, they do not fail the document.
func Decode(r io.Reader) (*osm.Diff, error) {
	dec := xml.NewDecoder(r)

	d, err := decodeRoot(dec)
	if err != nil {
		return nil, err
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return d, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading adiff")
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			if tok.Name.Local != "action" {
				if err := dec.Skip(); err != nil {
					return nil, errors.Wrap(err, "reading adiff")
				}
				continue
			}
			var kindAttr string
			for _, attr := range tok.Attr {
				if attr.Name.Local == "type" {
					kindAttr = attr.Value
				}
			}
			kind, known := osm.KindValues[kindAttr]
			if !known {
				log.Printf("[warn] dropping action with unknown type %q", kindAttr)
				if err := dec.Skip(); err != nil {
					return nil, errors.Wrap(err, "reading adiff")
				}
				continue
			}
			action, err := decodeAction(dec, kind)
			if err != nil {
				return nil, err
			}
			switch kind {
			case osm.Create:
				d.Creates = append(d.Creates, action)
			case osm.Modify:
				d.Modifies = append(d.Modifies, action)
			case osm.Delete:
				d.Deletes = append(d.Deletes, action)
			}
		case xml.EndElement:
			if tok.Name.Local == "osm" {
				return d, nil
			}
		}
	}
}

// DecodeFile decodes an augmented diff from a file, transparently
// handling .gz compressed files.
func DecodeFile(filename string) (*osm.Diff, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(filename, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return Decode(r)
}

func decodeRoot(dec *xml.Decoder) (*osm.Diff, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrMalformedDocument
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading adiff")
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "osm" {
			return nil, ErrMalformedDocument
		}
		d := &osm.Diff{}
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "version":
				d.Version = attr.Value
			case "generator":
				d.Generator = attr.Value
			case "note":
				d.Note = attr.Value
			}
		}
		if d.Version == "" || d.Generator == "" {
			return nil, ErrMalformedDocument
		}
		return d, nil
	}
}

func decodeAction(dec *xml.Decoder, kind osm.Kind) (osm.Action, error) {
	action := osm.Action{Kind: kind}
	for {
		tok, err := dec.Token()
		if err != nil {
			return action, errors.Wrap(err, "reading action")
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			switch tok.Name.Local {
			case "old":
				obj, err := decodeWrapped(dec, "old")
				if err != nil {
					return action, err
				}
				if action.Old == nil {
					action.Old = obj
				}
			case "new":
				obj, err := decodeWrapped(dec, "new")
				if err != nil {
					return action, err
				}
				if action.New == nil {
					action.New = obj
				}
			default:
				if err := dec.Skip(); err != nil {
					return action, errors.Wrap(err, "reading action")
				}
			}
		case xml.EndElement:
			if tok.Name.Local == "action" {
				return action, nil
			}
		}
	}
}

// decodeWrapped decodes the first child of an old/new wrapper. Further
// children and unknown primitives are skipped.
func decodeWrapped(dec *xml.Decoder, wrapper string) (*osm.Object, error) {
	var obj *osm.Object
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "reading "+wrapper)
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			if obj != nil {
				if err := dec.Skip(); err != nil {
					return nil, errors.Wrap(err, "reading "+wrapper)
				}
				continue
			}
			o, err := decodeObject(dec, tok)
			if err != nil {
				return nil, err
			}
			obj = o
		case xml.EndElement:
			if tok.Name.Local == wrapper {
				return obj, nil
			}
		}
	}
}

func decodeObject(dec *xml.Decoder, start xml.StartElement) (*osm.Object, error) {
	switch start.Name.Local {
	case "node":
		return decodeNode(dec, start)
	case "way":
		return decodeWay(dec, start)
	case "relation":
		return decodeRelation(dec, start)
	}
	log.Printf("[warn] dropping unknown element %q", start.Name.Local)
	if err := dec.Skip(); err != nil {
		return nil, errors.Wrap(err, "skipping unknown element")
	}
	return nil, nil
}

func decodeNode(dec *xml.Decoder, start xml.StartElement) (*osm.Object, error) {
	node := &osm.Node{Element: decodeElement(start.Attr)}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "lat":
			if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
				node.Lat = &v
			}
		case "lon":
			if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
				node.Long = &v
			}
		}
	}
	err := decodeChildren(dec, "node", &node.Element, nil)
	if err != nil {
		return nil, err
	}
	return &osm.Object{Node: node}, nil
}

func decodeWay(dec *xml.Decoder, start xml.StartElement) (*osm.Object, error) {
	way := &osm.Way{Element: decodeElement(start.Attr)}
	err := decodeChildren(dec, "way", &way.Element, func(child xml.StartElement) {
		if child.Name.Local != "nd" {
			return
		}
		nd := osm.NodeRef{}
		for _, attr := range child.Attr {
			switch attr.Name.Local {
			case "ref":
				nd.Ref, _ = strconv.ParseInt(attr.Value, 10, 64)
			case "lat":
				if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
					nd.Lat = &v
				}
			case "lon":
				if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
					nd.Long = &v
				}
			}
		}
		way.Nodes = append(way.Nodes, nd)
	})
	if err != nil {
		return nil, err
	}
	return &osm.Object{Way: way}, nil
}

func decodeRelation(dec *xml.Decoder, start xml.StartElement) (*osm.Object, error) {
	rel := &osm.Relation{Element: decodeElement(start.Attr)}
	err := decodeChildren(dec, "relation", &rel.Element, func(child xml.StartElement) {
		if child.Name.Local != "member" {
			return
		}
		member := osm.Member{}
		for _, attr := range child.Attr {
			switch attr.Name.Local {
			case "type":
				t, ok := osm.TypeValues[attr.Value]
				if !ok {
					// ignore members with unknown types
					return
				}
				member.Type = t
			case "ref":
				member.Ref, _ = strconv.ParseInt(attr.Value, 10, 64)
			case "role":
				member.Role = attr.Value
			}
		}
		rel.Members = append(rel.Members, member)
	})
	if err != nil {
		return nil, err
	}
	return &osm.Object{Rel: rel}, nil
}

// decodeChildren consumes the children of a primitive element until
// its end tag. Tags are collected into el, other children are passed
// to extra (nd, member) before being skipped.
func decodeChildren(dec *xml.Decoder, name string, el *osm.Element, extra func(xml.StartElement)) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "reading "+name)
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			if tok.Name.Local == "tag" {
				var k, v string
				for _, attr := range tok.Attr {
					if attr.Name.Local == "k" {
						k = attr.Value
					} else if attr.Name.Local == "v" {
						v = attr.Value
					}
				}
				if el.Tags == nil {
					el.Tags = osm.Tags{}
				}
				el.Tags[k] = v
			} else if extra != nil {
				extra(tok)
			}
			if err := dec.Skip(); err != nil {
				return errors.Wrap(err, "reading "+name)
			}
		case xml.EndElement:
			if tok.Name.Local == name {
				return nil
			}
		}
	}
}

func decodeElement(attrs []xml.Attr) osm.Element {
	el := osm.Element{Visible: true}
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "id":
			el.ID, _ = strconv.ParseInt(attr.Value, 10, 64)
		case "version":
			if v, err := strconv.Atoi(attr.Value); err == nil {
				el.Version = &v
			}
		case "timestamp":
			if ts, err := time.Parse(time.RFC3339, attr.Value); err == nil {
				el.Timestamp = &ts
			}
		case "uid":
			if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
				el.UID = &v
			}
		case "user":
			user := attr.Value
			el.User = &user
		case "changeset":
			if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
				el.Changeset = &v
			}
		case "visible":
			if attr.Value == "false" {
				el.Visible = false
			}
		}
	}
	return el
}
