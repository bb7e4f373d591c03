package network

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/osmparser"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	SourceSample = "sample"
)

// Loader reads road networks from disk. Supported formats: .json, .json.zst, .osm.pbf and .osm.
type Loader struct {
	log *zap.Logger
}

func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{log: log}
}

// Load returns the network stored at path. An empty path or "sample" returns SampleRoadNetwork.
func (l *Loader) Load(ctx context.Context, path string) (datastructure.RoadNetwork, error) {
	switch {
	case path == "" || path == SourceSample:
		return SampleRoadNetwork(), nil
	case strings.HasSuffix(path, ".json"):
		return l.loadJSON(path, false)
	case strings.HasSuffix(path, ".json.zst"):
		return l.loadJSON(path, true)
	case strings.HasSuffix(path, ".pbf"), strings.HasSuffix(path, ".osm"), strings.HasSuffix(path, ".xml"):
		return osmparser.ParseFile(ctx, path, l.log)
	}
	return datastructure.RoadNetwork{}, errors.Errorf("unsupported road network file %q", path)
}

func (l *Loader) loadJSON(path string, compressed bool) (datastructure.RoadNetwork, error) {
	var rc io.ReadCloser
	f, err := os.Open(path)
	if err != nil {
		return datastructure.RoadNetwork{}, errors.Wrap(err, "file open")
	}
	rc = f
	if compressed {
		rc, err = decompressFrom(f)
		if err != nil {
			f.Close()
			return datastructure.RoadNetwork{}, err
		}
	}
	defer rc.Close()

	var network datastructure.RoadNetwork
	if err := json.NewDecoder(rc).Decode(&network); err != nil {
		return datastructure.RoadNetwork{}, errors.Wrapf(err, "decode road network %s", path)
	}
	l.log.Info("road network file loaded",
		zap.String("path", path),
		zap.Int("nodes", len(network.Nodes)),
		zap.Int("edges", len(network.Edges)),
	)
	return network, nil
}

// SaveFile writes network as .json or .json.zst depending on the path suffix.
func (l *Loader) SaveFile(path string, network datastructure.RoadNetwork) error {
	compressed := strings.HasSuffix(path, ".json.zst")
	if !compressed && !strings.HasSuffix(path, ".json") {
		return errors.Errorf("unsupported output file %q, want .json or .json.zst", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	data, err := json.Marshal(network)
	if err != nil {
		return errors.Wrap(err, "encode road network")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "file create")
	}
	defer f.Close()

	if compressed {
		err = compressTo(f, bytes.NewReader(data))
	} else {
		_, err = f.Write(data)
	}
	if err != nil {
		return errors.Wrapf(err, "write road network %s", path)
	}
	return f.Sync()
}
